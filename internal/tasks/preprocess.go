package tasks

import (
	"context"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/askiada/go-assetpipe/internal/config"
	"github.com/askiada/go-assetpipe/internal/telemetry"
)

var ErrPreprocess = errors.New("preprocess")

var directiveRe = regexp.MustCompile(`<!--\s*@(if|ifdef|ifndef|endif|echo|exclude|endexclude)\b\s*(.*?)\s*-->`)

// Preprocess renders the HTML entry point for a target. The context is the process
// environment overlaid with ctxVars.
func Preprocess(ctx context.Context, cfg config.Config, ctxVars map[string]string) error {
	out, err := renderHTML(cfg, ctxVars)
	if err != nil {
		return err
	}

	err = writeFile(cfg.Path(cfg.HTML.Dest), []byte(out))
	if err != nil {
		return err
	}

	telemetry.FromContext(ctx).Info("html preprocessed", "src", cfg.HTML.Src, "dest", cfg.HTML.Dest)

	return nil
}

// renderHTML returns the HTML entry point with its directives evaluated for ctxVars.
func renderHTML(cfg config.Config, ctxVars map[string]string) (string, error) {
	src, err := os.ReadFile(cfg.Path(cfg.HTML.Src))
	if err != nil {
		return "", errors.Wrapf(err, "unable to read %s", cfg.HTML.Src)
	}

	vars := environ()
	for k, v := range ctxVars {
		vars[k] = v
	}

	out, err := PreprocessHTML(string(src), vars)
	if err != nil {
		return "", errors.Wrap(err, cfg.HTML.Src)
	}

	return out, nil
}

func environ() map[string]string {
	vars := map[string]string{}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	return vars
}

// PreprocessHTML evaluates the directives found in HTML comments:
//
//	<!-- @if dist -->...<!-- @endif -->
//	<!-- @ifdef API_URL -->...<!-- @endif -->
//	<!-- @ifndef API_URL -->...<!-- @endif -->
//	<!-- @echo API_URL -->
//	<!-- @exclude -->...<!-- @endexclude -->
//
// Conditions accept identifiers, quoted strings, !, ==, !=, && and || with parentheses.
func PreprocessHTML(src string, vars map[string]string) (string, error) {
	type frame struct {
		directive string
		active    bool
	}

	var (
		out   strings.Builder
		stack []frame
		pos   int
	)

	active := func() bool {
		for _, f := range stack {
			if !f.active {
				return false
			}
		}

		return true
	}

	for _, loc := range directiveRe.FindAllStringSubmatchIndex(src, -1) {
		if active() {
			out.WriteString(src[pos:loc[0]])
		}

		pos = loc[1]
		directive := src[loc[2]:loc[3]]
		arg := src[loc[4]:loc[5]]

		switch directive {
		case "if":
			ok, err := evalCondition(arg, vars)
			if err != nil {
				return "", err
			}

			stack = append(stack, frame{directive: "if", active: ok})
		case "ifdef", "ifndef":
			_, defined := vars[arg]
			stack = append(stack, frame{directive: "if", active: defined == (directive == "ifdef")})
		case "exclude":
			stack = append(stack, frame{directive: "exclude", active: false})
		case "endif", "endexclude":
			want := "if"
			if directive == "endexclude" {
				want = "exclude"
			}

			if len(stack) == 0 || stack[len(stack)-1].directive != want {
				return "", errors.Wrapf(ErrPreprocess, "@%s without matching opening directive", directive)
			}

			stack = stack[:len(stack)-1]
		case "echo":
			if active() {
				out.WriteString(vars[arg])
			}
		}
	}

	if len(stack) > 0 {
		return "", errors.Wrapf(ErrPreprocess, "@%s is never closed", stack[len(stack)-1].directive)
	}

	out.WriteString(src[pos:])

	return out.String(), nil
}

func truthy(v string) bool {
	return v != "" && v != "false" && v != "0"
}

func boolString(b bool) string {
	if b {
		return "true"
	}

	return "false"
}

// condParser is a recursive descent parser over the tokens of a condition.
type condParser struct {
	tokens []string
	pos    int
	vars   map[string]string
}

func evalCondition(expr string, vars map[string]string) (bool, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return false, err
	}

	if len(tokens) == 0 {
		return false, errors.Wrap(ErrPreprocess, "@if without condition")
	}

	p := &condParser{tokens: tokens, vars: vars}

	v, err := p.or()
	if err != nil {
		return false, err
	}

	if p.pos != len(p.tokens) {
		return false, errors.Wrapf(ErrPreprocess, "unexpected %q in %q", p.tokens[p.pos], expr)
	}

	return truthy(v), nil
}

func tokenize(expr string) ([]string, error) {
	var tokens []string

	for i := 0; i < len(expr); {
		c := rune(expr[i])

		switch {
		case unicode.IsSpace(c):
			i++
		case strings.HasPrefix(expr[i:], "&&"), strings.HasPrefix(expr[i:], "||"),
			strings.HasPrefix(expr[i:], "=="), strings.HasPrefix(expr[i:], "!="):
			tokens = append(tokens, expr[i:i+2])
			i += 2
		case c == '!' || c == '(' || c == ')':
			tokens = append(tokens, string(c))
			i++
		case c == '\'' || c == '"':
			end := strings.IndexRune(expr[i+1:], c)
			if end < 0 {
				return nil, errors.Wrapf(ErrPreprocess, "unterminated string in %q", expr)
			}

			tokens = append(tokens, expr[i:i+end+2])
			i += end + 2
		case c == '_' || c == '.' || unicode.IsLetter(c) || unicode.IsDigit(c):
			j := i
			for j < len(expr) && (expr[j] == '_' || expr[j] == '.' || unicode.IsLetter(rune(expr[j])) || unicode.IsDigit(rune(expr[j]))) {
				j++
			}

			tokens = append(tokens, expr[i:j])
			i = j
		default:
			return nil, errors.Wrapf(ErrPreprocess, "unexpected %q in %q", c, expr)
		}
	}

	return tokens, nil
}

func (p *condParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}

	return ""
}

func (p *condParser) or() (string, error) {
	left, err := p.and()
	if err != nil {
		return "", err
	}

	for p.peek() == "||" {
		p.pos++

		right, err := p.and()
		if err != nil {
			return "", err
		}

		left = boolString(truthy(left) || truthy(right))
	}

	return left, nil
}

func (p *condParser) and() (string, error) {
	left, err := p.equality()
	if err != nil {
		return "", err
	}

	for p.peek() == "&&" {
		p.pos++

		right, err := p.equality()
		if err != nil {
			return "", err
		}

		left = boolString(truthy(left) && truthy(right))
	}

	return left, nil
}

func (p *condParser) equality() (string, error) {
	left, err := p.unary()
	if err != nil {
		return "", err
	}

	for op := p.peek(); op == "==" || op == "!="; op = p.peek() {
		p.pos++

		right, err := p.unary()
		if err != nil {
			return "", err
		}

		left = boolString((left == right) == (op == "=="))
	}

	return left, nil
}

func (p *condParser) unary() (string, error) {
	if p.peek() == "!" {
		p.pos++

		v, err := p.unary()
		if err != nil {
			return "", err
		}

		return boolString(!truthy(v)), nil
	}

	return p.primary()
}

func (p *condParser) primary() (string, error) {
	tok := p.peek()
	if tok == "" {
		return "", errors.Wrap(ErrPreprocess, "unexpected end of condition")
	}

	p.pos++

	switch {
	case tok == "(":
		v, err := p.or()
		if err != nil {
			return "", err
		}

		if p.peek() != ")" {
			return "", errors.Wrap(ErrPreprocess, "missing )")
		}

		p.pos++

		return v, nil
	case tok[0] == '\'' || tok[0] == '"':
		return tok[1 : len(tok)-1], nil
	case tok == "true" || tok == "false":
		return tok, nil
	case unicode.IsDigit(rune(tok[0])):
		return tok, nil
	case tok == ")" || tok == "&&" || tok == "||" || tok == "==" || tok == "!=":
		return "", errors.Wrapf(ErrPreprocess, "unexpected %q", tok)
	default:
		return p.vars[tok], nil
	}
}
