package driver

import (
	"fmt"
	"io"

	"svelab/internal/elab"
)

// DumpFormat selects how the hierarchy is written.
type DumpFormat string

const (
	DumpText    DumpFormat = "text"
	DumpJSON    DumpFormat = "json"
	DumpMsgpack DumpFormat = "msgpack"
)

// ParseDumpFormat validates a --dump value.
func ParseDumpFormat(s string) (DumpFormat, error) {
	switch DumpFormat(s) {
	case DumpText, DumpJSON, DumpMsgpack:
		return DumpFormat(s), nil
	}
	return "", fmt.Errorf("unknown dump format %q (want text, json or msgpack)", s)
}

// DumpRoot returns the hierarchy of res, serializing it when it was not
// replayed from the cache.
func (res *Result) DumpRoot() *elab.DumpNode {
	if res.Dump != nil {
		return res.Dump
	}
	if res.Compilation == nil {
		return nil
	}
	res.Dump = elab.NewSerializer(res.Compilation).Root()
	return res.Dump
}

// WriteDump writes the hierarchy of res in format.
func WriteDump(w io.Writer, res *Result, format DumpFormat) error {
	root := res.DumpRoot()
	if root == nil {
		return fmt.Errorf("%s: nothing to dump", res.Name)
	}
	switch format {
	case DumpJSON:
		return elab.WriteJSON(w, root)
	case DumpMsgpack:
		return elab.WriteMsgpack(w, root)
	default:
		return elab.WriteText(w, root)
	}
}
