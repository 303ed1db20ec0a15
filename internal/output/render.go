package output

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"ftree/internal/core/errors"
	"ftree/internal/shared/util"
)

const DefaultDotCommand = "dot"

// Renderer converts a DOT document into another format and writes it to
// out.
type Renderer interface {
	Render(ctx context.Context, format, out string, dot []byte) error
}

// GraphvizRenderer pipes the document into `<Command> -T<format> -o <out>`.
type GraphvizRenderer struct {
	Command string
}

func (r GraphvizRenderer) Render(ctx context.Context, format, out string, dot []byte) error {
	command := strings.TrimSpace(r.Command)
	if command == "" {
		command = DefaultDotCommand
	}
	args := []string{"-T" + format, "-o", out}
	slog.Info("rendering graph", "command", command, "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = bytes.NewReader(dot)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return errors.AddContext(errors.Wrap(err, errors.CodeRender, "graphviz failed"), errors.CtxPath, out)
	}
	return nil
}

// Write serialises p according to the extension of out: .dot, .mmd, .tsv
// and .txt are written directly, anything else goes through renderer.
func Write(ctx context.Context, p *Plot, out string, renderer Renderer) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
	if format == "" {
		return errors.AddContext(errors.New(errors.CodeValidationError, "output file needs an extension"), errors.CtxPath, out)
	}

	var (
		content string
		err     error
	)
	switch format {
	case "dot", "gv":
		content, err = NewDOTGenerator(p).Generate()
	case "mmd", "mermaid":
		content, err = NewMermaidGenerator(p).Generate()
	case "tsv":
		content, err = NewTSVGenerator(p).Generate()
	case "txt":
		content, err = NewTreeGenerator(p).Generate()
	default:
		dot, genErr := NewDOTGenerator(p).Generate()
		if genErr != nil {
			return errors.Wrap(genErr, errors.CodeRender, "generate DOT output")
		}
		if renderer == nil {
			renderer = GraphvizRenderer{}
		}
		return renderer.Render(ctx, format, out, []byte(dot))
	}
	if err != nil {
		return errors.Wrap(err, errors.CodeRender, fmt.Sprintf("generate %s output", format))
	}
	if err := util.WriteStringWithDirs(out, content, 0o644); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeRender, "write plot"), errors.CtxPath, out)
	}
	return nil
}
