// Package flagx lets several flag sets share one argument list. The server
// config reads -c/-config for its JSON file and its own short flags from the
// same os.Args, and neither set may fail on the other's flags.
package flagx

import (
	"flag"
	"strings"
)

// ConfigFlags are the names accepted for the JSON configuration file path.
var ConfigFlags = []string{"c", "config"}

func flagName(arg string) (name string, inline bool) {
	name = strings.TrimLeft(arg, "-")
	if i := strings.IndexByte(name, '='); i >= 0 {
		return name[:i], true
	}
	return name, false
}

// FilterArgs keeps only the arguments that belong to the allowed flags.
// Names are given without dashes; "-n v", "--n v", "-n=v" and "--n=v" are
// all recognised. A separate value is taken only when it does not start
// with a dash.
func FilterArgs(args []string, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[strings.TrimLeft(a, "-")] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name, inline := flagName(arg)
		if _, ok := set[name]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if !inline && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// Names lists the flags defined on fs.
func Names(fs *flag.FlagSet) []string {
	var names []string
	fs.VisitAll(func(f *flag.Flag) { names = append(names, f.Name) })
	return names
}

// ParseOwn parses the arguments of args that are defined on fs and ignores
// the rest.
func ParseOwn(fs *flag.FlagSet, args []string) error {
	return fs.Parse(FilterArgs(args, Names(fs)))
}

// ConfigPath returns the value of the last -c or -config flag in args, or
// "" when there is none.
func ConfigPath(args []string) string {
	var path string
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = ParseOwn(fs, args)
	return path
}
