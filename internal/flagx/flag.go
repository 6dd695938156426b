// Package flagx lets several flag sets share one command line: each set
// parses only the arguments it declares and ignores the rest.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs keeps the arguments naming one of allowed, with their values.
// A value is taken from "-f=value" or from the next argument when that
// one does not start with '-'. The result is never nil.
func FilterArgs(args []string, allowed []string) []string {
	keep := make(map[string]bool, len(allowed))
	for _, f := range allowed {
		keep[f] = true
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if keep[name] {
				filtered = append(filtered, arg)
			}
			continue
		}

		if !keep[arg] {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// Parse parses into fs only the arguments naming flags defined on fs.
func Parse(fs *flag.FlagSet, args []string) error {
	var names []string
	fs.VisitAll(func(f *flag.Flag) {
		names = append(names, "-"+f.Name, "--"+f.Name)
	})
	return fs.Parse(FilterArgs(args, names))
}

// ConfigPath returns the JSON config file named by -c or -config, or ""
// when neither is given. The last occurrence wins.
func ConfigPath(args []string) string {
	var path string
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = Parse(fs, args)
	return path
}
