package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// resultMarker prefixes the envelope line in the child's stdout so it can be
// separated from lines printed by user code.
const resultMarker = "__WORKFLOW_RESULT__"

var (
	interfaceStartRe = regexp.MustCompile(`^\s*(?:export\s+)?interface\s+[A-Za-z_$][\w$]*`)
	typeAliasRe      = regexp.MustCompile(`(?m)^\s*(?:export\s+)?type\s+[A-Za-z_$][\w$]*(?:<[^=\n]*>)?\s*=[^;\n]*;?\s*$`)
	asCastRe         = regexp.MustCompile(`\s+as\s+[A-Za-z_$][\w$.<>\[\]]*`)
	varAnnotationRe  = regexp.MustCompile(`(?m)\b(const|let|var)\s+([A-Za-z_$][\w$]*)\s*:\s*[^=;\n]+?=`)
)

// StripTypes removes TypeScript-only syntax so the source runs under plain
// node: interface blocks, type aliases, as-casts, and the common forms of
// parameter, variable, and return type annotations.
//
// This is a lexical transform, not a parser. It covers the annotations users
// write in short workflow scripts; exotic constructs like mapped types or
// ternaries inside parameter defaults may come through mangled and surface as
// a node syntax error.
func StripTypes(src string) string {
	src = stripInterfaces(src)
	src = typeAliasRe.ReplaceAllString(src, "")
	src = asCastRe.ReplaceAllString(src, "")
	src = varAnnotationRe.ReplaceAllString(src, "$1 $2 =")
	src = stripSignatureAnnotations(src)
	return src
}

// stripInterfaces drops interface declarations by tracking brace depth from
// the declaration line until it closes.
func stripInterfaces(src string) string {
	lines := strings.Split(src, "\n")
	var out []string
	depth := 0
	inInterface := false
	for _, line := range lines {
		if !inInterface && interfaceStartRe.MatchString(line) {
			inInterface = true
			depth = strings.Count(line, "{") - strings.Count(line, "}")
			if depth <= 0 && strings.Contains(line, "{") {
				inInterface = false
			}
			continue
		}
		if inInterface {
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			if depth <= 0 {
				inInterface = false
			}
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// controlKeywords name the statements whose parenthesized head must not be
// mistaken for a parameter list.
var controlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true, "return": true,
}

// stripSignatureAnnotations walks the source and rewrites every paren group
// that starts a function body or arrow, dropping parameter and return type
// annotations. Paren groups after control keywords pass through untouched so
// ternaries inside conditions survive.
func stripSignatureAnnotations(src string) string {
	runes := []rune(src)
	var out strings.Builder
	i := 0
	for i < len(runes) {
		c := runes[i]
		if c == '\'' || c == '"' || c == '`' {
			j := skipStringLit(runes, i)
			out.WriteString(string(runes[i:j]))
			i = j
			continue
		}
		if c == '(' {
			if end := matchParen(runes, i); end > 0 {
				after := skipSpaces(runes, end+1)
				colon := -1
				typeEnd := end + 1
				if after < len(runes) && runes[after] == ':' {
					colon = after
					typeEnd = skipTypeExpr(runes, after+1)
				}
				next := skipSpaces(runes, typeEnd)
				arrow := next+1 < len(runes) && runes[next] == '=' && runes[next+1] == '>'
				body := next < len(runes) && runes[next] == '{' && !controlKeywords[precedingWord(runes, i)]
				if arrow || body {
					out.WriteString(stripParams(string(runes[i : end+1])))
					if colon >= 0 {
						out.WriteString(string(runes[end+1 : colon]))
						if typeEnd < len(runes) && runes[typeEnd] == '{' {
							out.WriteByte(' ')
						}
						i = typeEnd
					} else {
						i = end + 1
					}
					continue
				}
			}
		}
		out.WriteRune(c)
		i++
	}
	return out.String()
}

// stripParams removes ": Type" annotations and "?" optional markers from a
// parameter list, leaving default values in place.
func stripParams(group string) string {
	runes := []rune(group)
	var out strings.Builder
	depth := 0
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch c {
		case '\'', '"', '`':
			j := skipStringLit(runes, i)
			out.WriteString(string(runes[i:j]))
			i = j
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '?':
			if depth == 1 {
				if n := skipSpaces(runes, i+1); n < len(runes) && runes[n] == ':' {
					i++
					continue
				}
			}
		case ':':
			if depth == 1 {
				i = skipTypeExpr(runes, i+1)
				continue
			}
		}
		out.WriteRune(c)
		i++
	}
	return out.String()
}

// skipTypeExpr consumes a type expression starting at i, tracking bracket and
// angle depth, and returns the index of the delimiter that ends it.
func skipTypeExpr(runes []rune, i int) int {
	depth := 0
	angle := 0
	for i < len(runes) {
		switch runes[i] {
		case '\'', '"', '`':
			i = skipStringLit(runes, i)
			continue
		case '(', '[':
			depth++
		case ')', ']':
			if depth == 0 {
				return i
			}
			depth--
		case '<':
			angle++
		case '>':
			if angle == 0 {
				return i
			}
			angle--
		case ',', '=', '{', ';', '\n':
			if depth == 0 && angle == 0 {
				return i
			}
		}
		i++
	}
	return i
}

func matchParen(runes []rune, i int) int {
	depth := 0
	for ; i < len(runes); i++ {
		switch runes[i] {
		case '\'', '"', '`':
			i = skipStringLit(runes, i) - 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func skipStringLit(runes []rune, i int) int {
	quote := runes[i]
	i++
	for i < len(runes) {
		if runes[i] == '\\' {
			i += 2
			continue
		}
		if runes[i] == quote {
			return i + 1
		}
		i++
	}
	return i
}

func skipSpaces(runes []rune, i int) int {
	for i < len(runes) && (runes[i] == ' ' || runes[i] == '\t' || runes[i] == '\n' || runes[i] == '\r') {
		i++
	}
	return i
}

func precedingWord(runes []rune, i int) string {
	j := i
	for j > 0 && (runes[j-1] == ' ' || runes[j-1] == '\t') {
		j--
	}
	k := j
	for k > 0 && isIdentRune(runes[k-1]) {
		k--
	}
	return string(runes[k:j])
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// RunTypeScript strips type annotations from code, wraps it with a driver
// that calls run(input), and executes it under bin (normally "node") with the
// given wall-clock bound. Lines the user printed stay in Result.Stdout; the
// envelope line is consumed by the parent.
func RunTypeScript(ctx context.Context, bin, code string, input any, timeout time.Duration) (Result, error) {
	if bin == "" {
		bin = "node"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return Result{}, fmt.Errorf("encode typescript input: %w", err)
	}
	program := buildProgram(StripTypes(code), string(inputJSON))

	file, err := os.CreateTemp("", "workflow-*.js")
	if err != nil {
		return Result{}, fmt.Errorf("create script file: %w", err)
	}
	defer os.Remove(file.Name())
	if _, err := file.WriteString(program); err != nil {
		file.Close()
		return Result{}, fmt.Errorf("write script file: %w", err)
	}
	file.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, file.Name())
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{
			OK:     false,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    fmt.Sprintf("typescript execution timed out after %s", timeout),
		}, nil
	}

	userOut, envLine := splitEnvelope(stdout.String())
	if envLine == "" {
		if runErr != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = runErr.Error()
			}
			return Result{
				OK:     false,
				Stdout: userOut,
				Stderr: stderr.String(),
				Err:    msg,
			}, nil
		}
		return Result{}, fmt.Errorf("typescript worker produced no result")
	}

	var env envelope
	if err := json.Unmarshal([]byte(envLine), &env); err != nil {
		return Result{}, fmt.Errorf("decode typescript result: %w", err)
	}
	return Result{
		OK:     env.OK,
		Output: env.Output,
		Stdout: userOut,
		Stderr: stderr.String(),
		Err:    env.Error,
	}, nil
}

func buildProgram(stripped, inputJSON string) string {
	var b strings.Builder
	b.WriteString("const __input = ")
	b.WriteString(inputJSON)
	b.WriteString(";\n")
	b.WriteString(stripped)
	b.WriteString("\n;(async () => {\n")
	b.WriteString("  try {\n")
	b.WriteString("    if (typeof run !== \"function\") throw new Error(\"code must define a run(input) function\");\n")
	b.WriteString("    const __result = await run(__input);\n")
	b.WriteString("    console.log(" + fmt.Sprintf("%q", resultMarker) + " + JSON.stringify({ok: true, output: __result === undefined ? null : __result}));\n")
	b.WriteString("  } catch (err) {\n")
	b.WriteString("    console.log(" + fmt.Sprintf("%q", resultMarker) + " + JSON.stringify({ok: false, error: String((err && err.message) || err)}));\n")
	b.WriteString("  }\n")
	b.WriteString("})();\n")
	return b.String()
}

// splitEnvelope separates user-printed lines from the envelope line.
func splitEnvelope(stdout string) (userOut, envLine string) {
	lines := strings.Split(stdout, "\n")
	var user []string
	for _, line := range lines {
		if strings.HasPrefix(line, resultMarker) {
			envLine = strings.TrimPrefix(line, resultMarker)
			continue
		}
		user = append(user, line)
	}
	userOut = strings.TrimRight(strings.Join(user, "\n"), "\n")
	return userOut, envLine
}
