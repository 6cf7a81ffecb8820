package main

import (
	"flag"
	"strconv"
	"strings"
)

// tripleFlags accept their kernel size either as one "x,y,z" argument or as
// three separate integers
var tripleFlags = map[string]bool{
	"kernel-gfactor":      true,
	"kernel-pca":          true,
	"kernel_size_gfactor": true,
	"kernel_size_pca":     true,
}

// splitArgs separates the arguments fs knows about from free-form
// "--key value" or "--key=value" engine overrides and from positional
// arguments. Known flags are returned in a form fs.Parse accepts.
func splitArgs(fs *flag.FlagSet, args []string) (known []string, overrides map[string]string, positional []string) {
	overrides = map[string]string{}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' || isNumber(arg) {
			positional = append(positional, arg)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		value, hasValue := "", false
		if j := strings.IndexByte(name, '='); j >= 0 {
			name, value, hasValue = name[:j], name[j+1:], true
		}

		if name == "h" || name == "help" {
			known = append(known, arg)
			continue
		}

		if f := fs.Lookup(name); f != nil {
			if hasValue || isBoolFlag(f) {
				known = append(known, arg)
				continue
			}
			if i+1 >= len(args) {
				// let fs.Parse report the missing value
				known = append(known, arg)
				continue
			}
			if tripleFlags[name] && i+4 <= len(args) && allInts(args[i+1:i+4]) {
				known = append(known, "-"+name+"="+strings.Join(args[i+1:i+4], ","))
				i += 3
				continue
			}
			known = append(known, "-"+name+"="+args[i+1])
			i++
			continue
		}

		if !hasValue {
			if i+1 < len(args) {
				value = args[i+1]
				i++
			}
		}
		overrides[name] = value
	}
	return known, overrides, positional
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func allInts(args []string) bool {
	for _, a := range args {
		if _, err := strconv.Atoi(a); err != nil {
			return false
		}
	}
	return true
}
