package jsbridge

import (
	"fmt"

	"github.com/evanw/esbuild/pkg/api"
)

// Loader selects how Evaluate reads its source.
type Loader uint8

const (
	LoaderJS  Loader = iota // plain script, passed through untouched
	LoaderTS                // TypeScript
	LoaderJSX               // JavaScript with JSX
	LoaderTSX               // TypeScript with JSX
	LoaderESM               // ES module, run as a script that publishes its exports
)

func (l Loader) String() string {
	switch l {
	case LoaderJS:
		return "js"
	case LoaderTS:
		return "ts"
	case LoaderJSX:
		return "jsx"
	case LoaderTSX:
		return "tsx"
	case LoaderESM:
		return "esm"
	default:
		return fmt.Sprintf("Loader(%d)", uint8(l))
	}
}

// DefaultModuleName is the global an ES module's exports land on when
// EvalOptions.ModuleName is empty.
const DefaultModuleName = "__module__"

// transform turns source written for l into a plain script. Failures come
// back as an EvaluationError located in the caller's file.
func transform(src string, opts EvalOptions) (string, *EvaluationError) {
	if opts.Loader == LoaderJS {
		return src, nil
	}

	to := api.TransformOptions{
		Sourcefile: opts.Filename,
		Target:     api.ESNext,
	}
	switch opts.Loader {
	case LoaderTS:
		to.Loader = api.LoaderTS
	case LoaderJSX:
		to.Loader = api.LoaderJSX
	case LoaderTSX:
		to.Loader = api.LoaderTSX
	case LoaderESM:
		name := opts.ModuleName
		if name == "" {
			name = DefaultModuleName
		}
		to.Loader = api.LoaderJS
		to.Format = api.FormatIIFE
		to.GlobalName = "globalThis." + name
	default:
		return "", &EvaluationError{
			Name:     "TypeError",
			Message:  fmt.Sprintf("unknown loader %s", opts.Loader),
			Filename: opts.Filename,
			Line:     opts.Line,
		}
	}

	result := api.Transform(src, to)
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		e := &EvaluationError{
			Name:     "SyntaxError",
			Message:  msg.Text,
			Filename: opts.Filename,
			Line:     opts.Line,
		}
		if msg.Location != nil {
			e.Line = opts.Line + msg.Location.Line - 1
		}
		e.Thrown = e.Name + ": " + e.Message
		return "", e
	}

	code := string(result.Code)
	if opts.Loader == LoaderESM {
		// esbuild puts a default export under .default; unwrap it.
		code += fmt.Sprintf("if(%[1]s&&%[1]s.default)%[1]s=%[1]s.default;\n", to.GlobalName)
	}
	return code, nil
}
