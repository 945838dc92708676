package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUsage marks arguments that do not match a command's flag set.
var ErrUsage = errors.New("folders: invalid command usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// Parser parses user-defined arguments into flags
type Parser struct {
	flagSet *CommandFlagSet
	long    map[string]string
	short   map[string]string
}

func NewParser(flagSet *CommandFlagSet) *Parser {
	if flagSet == nil {
		flagSet = &CommandFlagSet{}
	}

	p := &Parser{
		flagSet: flagSet,
		long:    make(map[string]string),
		short:   make(map[string]string),
	}
	for key, flag := range flagSet.Flags {
		p.long[flag.Name] = key
		if flag.Short != "" {
			p.short[flag.Short] = key
		}
	}
	return p
}

func (p *Parser) Parse(raw []string) (*CommandArgs, error) {
	args := &CommandArgs{
		Flags: make(map[string]any),
		Raw:   raw,
	}

	for key, flag := range p.flagSet.Flags {
		if flag.Default != nil {
			args.Flags[key] = flag.Default
		}
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		switch {
		case arg == "--":
			args.Args = append(args.Args, raw[i+1:]...)
			i = len(raw)

		case strings.HasPrefix(arg, "--"):
			name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
			key, exists := p.long[name]
			if !exists {
				return nil, usageError("unknown flag --%s", name)
			}

			flag := p.flagSet.Flags[key]
			switch {
			case flag.Type == "bool" && !hasValue:
				args.Flags[key] = true
				continue
			case !hasValue && i+1 < len(raw):
				value = raw[i+1]
				i++
			case !hasValue:
				return nil, usageError("flag --%s requires a value", name)
			}

			v, err := coerce(value, flag.Type)
			if err != nil {
				return nil, usageError("flag --%s: %v", name, err)
			}
			args.Flags[key] = v

		case strings.HasPrefix(arg, "-") && arg != "-":
			shorts := arg[1:]
			for j, r := range shorts {
				key, exists := p.short[string(r)]
				if !exists {
					return nil, usageError("unknown flag -%c", r)
				}

				flag := p.flagSet.Flags[key]
				if flag.Type == "bool" {
					args.Flags[key] = true
					continue
				}

				// -n5 and -n 5 both set n
				value := shorts[j+1:]
				if value == "" {
					if i+1 >= len(raw) {
						return nil, usageError("flag -%c requires a value", r)
					}
					value = raw[i+1]
					i++
				}

				v, err := coerce(value, flag.Type)
				if err != nil {
					return nil, usageError("flag -%c: %v", r, err)
				}
				args.Flags[key] = v
				break
			}

		default:
			args.Args = append(args.Args, arg)
		}
	}

	for key, flag := range p.flagSet.Flags {
		if _, ok := args.Flags[key]; flag.Required && !ok {
			if flag.Short != "" {
				return nil, usageError("required flag -%s / --%s", flag.Short, flag.Name)
			}
			return nil, usageError("required flag --%s", flag.Name)
		}
	}

	return args, nil
}

func coerce(value, typ string) (any, error) {
	switch typ {
	case "int":
		return strconv.ParseInt(value, 10, 64)
	case "bool":
		return strconv.ParseBool(value)
	default:
		return value, nil
	}
}
