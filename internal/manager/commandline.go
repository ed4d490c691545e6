package manager

import (
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// SplitCommandLine parses a raw shell line (as received from a shell
// hook or alias) into a single argument vector using a real shell
// grammar, so quoting and escapes behave exactly as they would at the
// prompt.
//
// The firewall verifies exactly one package manager invocation at a
// time: lines containing pipes, command lists, redirections, or
// expansions that cannot be resolved statically are rejected rather
// than guessed at.
func SplitCommandLine(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty command line")
	}

	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(raw), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command line: %w", err)
	}
	if len(file.Stmts) != 1 {
		return nil, fmt.Errorf("expected a single command, got %d statements", len(file.Stmts))
	}

	stmt := file.Stmts[0]
	if len(stmt.Redirs) > 0 {
		return nil, errors.New("redirections are not supported in firewalled commands")
	}
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok {
		return nil, errors.New("pipelines and compound commands are not supported in firewalled commands")
	}

	var args []string
	for _, word := range call.Args {
		lit := literalWord(word)
		if lit == "" {
			return nil, fmt.Errorf("cannot statically resolve argument %q", wordSource(raw, word))
		}
		args = append(args, lit)
	}
	if len(args) == 0 {
		return nil, errors.New("empty command line")
	}
	return args, nil
}

// literalWord flattens a word composed purely of literals and quoted
// literals. Words involving expansions return "".
func literalWord(word *syntax.Word) string {
	var sb strings.Builder
	var flatten func(parts []syntax.WordPart) bool
	flatten = func(parts []syntax.WordPart) bool {
		for _, part := range parts {
			switch p := part.(type) {
			case *syntax.Lit:
				sb.WriteString(p.Value)
			case *syntax.SglQuoted:
				sb.WriteString(p.Value)
			case *syntax.DblQuoted:
				if !flatten(p.Parts) {
					return false
				}
			default:
				return false
			}
		}
		return true
	}
	if !flatten(word.Parts) {
		return ""
	}
	return sb.String()
}

func wordSource(raw string, word *syntax.Word) string {
	start, end := word.Pos().Offset(), word.End().Offset()
	if start >= uint(len(raw)) || end > uint(len(raw)) || start >= end {
		return raw
	}
	return raw[start:end]
}
