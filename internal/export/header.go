package export

import (
	"reflect"
	"strings"
)

// Columns lists the export column labels in order, read from Row's tags.
func Columns() []string {
	rt := reflect.TypeOf(Row{})
	out := make([]string, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		out = append(out, rt.Field(i).Tag.Get("csv"))
	}
	return out
}

func Header() string {
	return strings.Join(Columns(), ",")
}
