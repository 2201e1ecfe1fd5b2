package design

// File is the decoded form of one design file. TOML and YAML share it.
type File struct {
	Directives Directives `toml:"directives" yaml:"directives"`
	Modules    []Module   `toml:"module" yaml:"module"`
	// Binds are compilation-unit bind directives.
	Binds []Member `toml:"bind" yaml:"bind"`
}

// Directives mirror the compiler directives in effect for a definition.
type Directives struct {
	DefaultNetType   string `toml:"default_nettype" yaml:"default_nettype"`
	UnconnectedDrive string `toml:"unconnected_drive" yaml:"unconnected_drive"`
	Timescale        string `toml:"timescale" yaml:"timescale"`
}

// Module describes a module, interface, program or primitive.
type Module struct {
	Name          string      `toml:"name" yaml:"name"`
	Kind          string      `toml:"kind" yaml:"kind"`
	Lifetime      string      `toml:"lifetime" yaml:"lifetime"`
	TimeUnit      string      `toml:"timeunit" yaml:"timeunit"`
	TimePrecision string      `toml:"timeprecision" yaml:"timeprecision"`
	Directives    *Directives `toml:"directives" yaml:"directives"`
	// Params is the #( ... ) header list.
	Params []Param `toml:"params" yaml:"params"`
	// Ports is an ANSI header; PortNames a non-ANSI one.
	Ports     []Port   `toml:"ports" yaml:"ports"`
	PortNames []string `toml:"port_names" yaml:"port_names"`
	Members   []Member `toml:"members" yaml:"members"`
	Nested    []Module `toml:"nested" yaml:"nested"`
}

type Param struct {
	Name string `toml:"name" yaml:"name"`
	// Kind is "type" for type parameters.
	Kind    string `toml:"kind" yaml:"kind"`
	Type    string `toml:"type" yaml:"type"`
	Default string `toml:"default" yaml:"default"`
	Local   bool   `toml:"local" yaml:"local"`
}

type Port struct {
	Name      string `toml:"name" yaml:"name"`
	Dir       string `toml:"dir" yaml:"dir"`
	Type      string `toml:"type" yaml:"type"`
	Interface string `toml:"interface" yaml:"interface"`
	Modport   string `toml:"modport" yaml:"modport"`
}

// Instance is one declarator of an instantiation.
type Instance struct {
	Name  string   `toml:"name" yaml:"name"`
	Dims  []string `toml:"dims" yaml:"dims"`
	Conns []string `toml:"conns" yaml:"conns"`
}

// Member is a body item. Kind selects which fields apply:
//
//	param     name, type, default, local, type_param
//	port      dir, type, names (non-ANSI declaration)
//	net, var  name or names, type, net_type, init
//	assign    lhs, rhs
//	inst      module, params, name/dims/conns or instances
//	gate      gate, delay, name/dims/conns or instances
//	bind      target, target_instances, module, params, instances
//	if        cond, label, else_label, then, else
//	modport   names
//	virtual   interface, modport, params, names
type Member struct {
	Kind string `toml:"kind" yaml:"kind"`

	Name  string   `toml:"name" yaml:"name"`
	Names []string `toml:"names" yaml:"names"`

	Type      string `toml:"type" yaml:"type"`
	NetType   string `toml:"net_type" yaml:"net_type"`
	Dir       string `toml:"dir" yaml:"dir"`
	Init      string `toml:"init" yaml:"init"`
	Default   string `toml:"default" yaml:"default"`
	Local     bool   `toml:"local" yaml:"local"`
	TypeParam bool   `toml:"type_param" yaml:"type_param"`

	LHS string `toml:"lhs" yaml:"lhs"`
	RHS string `toml:"rhs" yaml:"rhs"`

	Module    string     `toml:"module" yaml:"module"`
	Params    []string   `toml:"params" yaml:"params"`
	Dims      []string   `toml:"dims" yaml:"dims"`
	Conns     []string   `toml:"conns" yaml:"conns"`
	Instances []Instance `toml:"instances" yaml:"instances"`

	Gate  string `toml:"gate" yaml:"gate"`
	Delay string `toml:"delay" yaml:"delay"`

	Target          string   `toml:"target" yaml:"target"`
	TargetInstances []string `toml:"target_instances" yaml:"target_instances"`

	Cond      string   `toml:"cond" yaml:"cond"`
	Label     string   `toml:"label" yaml:"label"`
	ElseLabel string   `toml:"else_label" yaml:"else_label"`
	Then      []Member `toml:"then" yaml:"then"`
	Else      []Member `toml:"else" yaml:"else"`

	Interface string `toml:"interface" yaml:"interface"`
	Modport   string `toml:"modport" yaml:"modport"`
}
