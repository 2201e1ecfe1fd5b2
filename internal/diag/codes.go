package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Design description / minimal syntax
	SynBadExpression  Code = 2001
	SynBadDataType    Code = 2002
	SynUnknownMember  Code = 2003
	SynMissingName    Code = 2004
	SynBadTimeLiteral Code = 2005
	SynBadDeclKind    Code = 2006

	// Definitions
	DefDuplicate            Code = 3001
	DefDuplicateParam       Code = 3002
	DefModportOutsideIface  Code = 3003
	DefTimePrecisionCoarser Code = 3004
	DefUnused               Code = 3005
	DefNotTopNoDefaults     Code = 3006
	DefUnknownTop           Code = 3007
	DefNoTopModules         Code = 3008
	DefDuplicateModport     Code = 3009

	// I/O
	IOLoadFileError Code = 4001
	IODecodeError   Code = 4002

	// Elaboration
	ElabUnknownModule          Code = 5001
	ElabParamNoValue           Code = 5002
	ElabParamNotConstant       Code = 5003
	ElabParamTypeExpected      Code = 5004
	ElabParamValueExpected     Code = 5005
	ElabParamUnknownName       Code = 5006
	ElabParamTooMany           Code = 5007
	ElabParamDuplicate         Code = 5008
	ElabParamOverrideLocal     Code = 5009
	ElabParamMixedAssign       Code = 5010
	ElabBadArrayDim            Code = 5011
	ElabImplicitNetNone        Code = 5012
	ElabRecursiveInstantiation Code = 5013
	ElabMaxDepth               Code = 5014
	ElabReentrantElaboration   Code = 5015
	ElabDuplicateMember        Code = 5016
	ElabUndeclaredIdentifier   Code = 5017
	ElabBindTargetNotFound     Code = 5018
	ElabBindTargetInvalid      Code = 5019
	ElabConstEval              Code = 5020
	ElabUnknownInterface       Code = 5021
	ElabUnknownModport         Code = 5022
	ElabNotAnInterface         Code = 5023
	ElabParamOverrideUnknown   Code = 5024

	// Ports
	PortUnknown              Code = 6001
	PortTooMany              Code = 6002
	PortMixedConnections     Code = 6003
	PortWidthMismatch        Code = 6004
	PortOutputNotLValue      Code = 6005
	PortInterfaceMismatch    Code = 6006
	PortInterfaceUnconnected Code = 6007
	PortUnconnected          Code = 6008
	PortDuplicateConnection  Code = 6009
	PortNonAnsiMissingDecl   Code = 6010
	PortNonAnsiNotInHeader   Code = 6011
	PortDeclInAnsiModule     Code = 6012
	PortPrimitiveNamed       Code = 6013
	PortPrimitiveArity       Code = 6014
	PortWildcardUnresolved   Code = 6015
	PortNonAnsiTypeConflict  Code = 6016

	// Observability
	ObsTimings Code = 7001
)

var codeDescription = map[Code]string{
	UnknownCode:                "Unknown error",
	SynBadExpression:           "malformed expression",
	SynBadDataType:             "malformed data type",
	SynUnknownMember:           "unknown member kind",
	SynMissingName:             "declaration without a name",
	SynBadTimeLiteral:          "malformed time literal",
	SynBadDeclKind:             "unknown declaration kind",
	DefDuplicate:               "duplicate definition",
	DefDuplicateParam:          "duplicate parameter declaration",
	DefModportOutsideIface:     "modport outside of an interface",
	DefTimePrecisionCoarser:    "time precision coarser than time unit",
	DefUnused:                  "definition is never instantiated",
	DefNotTopNoDefaults:        "parameters without defaults prevent top-level use",
	DefUnknownTop:              "requested top module does not exist",
	DefNoTopModules:            "design has no top-level modules",
	DefDuplicateModport:        "duplicate modport",
	IOLoadFileError:            "I/O load file error",
	IODecodeError:              "design file decode error",
	ElabUnknownModule:          "unknown module",
	ElabParamNoValue:           "parameter has no value",
	ElabParamNotConstant:       "parameter value is not constant",
	ElabParamTypeExpected:      "type parameter needs a type",
	ElabParamValueExpected:     "value parameter needs an expression",
	ElabParamUnknownName:       "no such parameter",
	ElabParamTooMany:           "too many parameter assignments",
	ElabParamDuplicate:         "duplicate parameter assignment",
	ElabParamOverrideLocal:     "local parameter cannot be overridden",
	ElabParamMixedAssign:       "mixed ordered and named parameter assignments",
	ElabBadArrayDim:            "invalid instance array dimension",
	ElabImplicitNetNone:        "implicit net with default_nettype none",
	ElabRecursiveInstantiation: "infinitely recursive instantiation",
	ElabMaxDepth:               "maximum instance depth exceeded",
	ElabReentrantElaboration:   "re-entrant elaboration",
	ElabDuplicateMember:        "duplicate member declaration",
	ElabUndeclaredIdentifier:   "undeclared identifier",
	ElabBindTargetNotFound:     "bind target not found",
	ElabBindTargetInvalid:      "bind target is not an instance",
	ElabConstEval:              "constant evaluation failed",
	ElabUnknownInterface:       "unknown interface",
	ElabUnknownModport:         "unknown modport",
	ElabNotAnInterface:         "definition is not an interface",
	ElabParamOverrideUnknown:   "override names no parameter",
	PortUnknown:                "no such port",
	PortTooMany:                "too many port connections",
	PortMixedConnections:       "mixed ordered and named port connections",
	PortWidthMismatch:          "port width mismatch",
	PortOutputNotLValue:        "output port connected to a non-lvalue",
	PortInterfaceMismatch:      "interface port connection mismatch",
	PortInterfaceUnconnected:   "interface port left unconnected",
	PortUnconnected:            "port left unconnected",
	PortDuplicateConnection:    "duplicate port connection",
	PortNonAnsiMissingDecl:     "non-ANSI port has no declaration",
	PortNonAnsiNotInHeader:     "port declaration not listed in the header",
	PortDeclInAnsiModule:       "port declaration in an ANSI-style header",
	PortPrimitiveNamed:         "primitive ports must be connected by position",
	PortPrimitiveArity:         "wrong number of primitive ports",
	PortWildcardUnresolved:     "wildcard connection found no signal",
	PortNonAnsiTypeConflict:    "port and body declaration disagree",
	ObsTimings:                 "timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("DEF%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("ELB%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("PRT%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
