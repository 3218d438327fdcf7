package toolkit

import "strings"

// Builder shapes the argument vector for one tool. It returns interpreter
// arguments (inserted before the script path) and script arguments
// (appended after it). Most tools use defaultBuilder; tools with bespoke
// CLI conventions register their own via Toolkit.Register.
type Builder func(opts Options) (interpreterArgs, args []string)

// defaultBuilder applies the standard option translation rules, in option
// order:
//
//   - a name already in --flag form is passed through; boolean values
//     contribute the bare flag only when true
//   - input_file is passed as a bare positional argument
//   - output_file and everything else become --name value pairs
func defaultBuilder(opts Options) ([]string, []string) {
	var args []string
	for _, o := range opts {
		switch {
		case strings.HasPrefix(o.Name, "--"):
			if b, ok := o.Value.(bool); ok {
				if b {
					args = append(args, o.Name)
				}
			} else {
				args = append(args, o.Name, FormatValue(o.Value))
			}
		case o.Name == InputKey:
			args = append(args, FormatValue(o.Value))
		case o.Name == OutputKey:
			args = append(args, "--"+o.Name, FormatValue(o.Value))
		default:
			args = append(args, "--"+o.Name, FormatValue(o.Value))
		}
	}
	return nil, args
}

// countTokensBuilder handles the token counter's bespoke CLI: the input
// file goes under --file instead of positionally, verbose is an optional
// bare flag, and the interpreter runs with deprecation warnings
// suppressed (the tokenizer library it imports emits one on startup).
func countTokensBuilder(opts Options) ([]string, []string) {
	pre := []string{"-W", "ignore::DeprecationWarning"}

	var args []string
	if v, ok := opts.Get(InputKey); ok {
		args = append(args, "--file", FormatValue(v))
	}
	if v, ok := opts.Get("verbose"); ok {
		if b, ok := v.(bool); ok && b {
			args = append(args, "--verbose")
		}
	}
	return pre, args
}
