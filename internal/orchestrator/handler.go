package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"discord-code-runner/internal/compiler"
	"discord-code-runner/internal/config"
	"discord-code-runner/internal/model"
	"discord-code-runner/internal/parser"
	"discord-code-runner/internal/report"
	"discord-code-runner/internal/syntax"
)

// SyntaxParser turns a snippet into its top-level items.
type SyntaxParser interface {
	Parse(ctx context.Context, code string) ([]syntax.Item, error)
}

// Compiler runs a language's compiler over one code block.
type Compiler interface {
	Compile(ctx context.Context, requestID string, block parser.CodeBlock) compiler.Result
}

// Handler turns one message into its reply. It keeps no per-message state.
type Handler struct {
	router         *parser.Router
	syntax         SyntaxParser
	compiler       Compiler
	maxSourceBytes int
	newID          func() string
	logger         *zap.Logger
}

// NewHandler builds a Handler for the commands of cfg.Variant.
func NewHandler(cfg config.Runtime, logger *zap.Logger) (*Handler, error) {
	cmds, err := parser.Variant(cfg.Variant).Commands()
	if err != nil {
		return nil, err
	}
	syn, err := syntax.New(cfg.ParseLanguage)
	if err != nil {
		return nil, err
	}
	runner := compiler.Runner{
		Bins: map[parser.Lang]string{
			parser.LangRust: cfg.Compilers.Rust,
			parser.LangJava: cfg.Compilers.Java,
			parser.LangSnow: cfg.Compilers.Snow,
		},
		WorkDir:       cfg.WorkDir,
		Timeout:       cfg.CompileTimeout,
		MaxOutput:     cfg.MaxOutput,
		KeepArtifacts: cfg.KeepArtifacts,
	}
	return newHandler(parser.NewRouter(cmds...), syn, runner, cfg.MaxSourceBytes, logger), nil
}

func newHandler(router *parser.Router, syn SyntaxParser, comp Compiler, maxSourceBytes int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		router:         router,
		syntax:         syn,
		compiler:       comp,
		maxSourceBytes: maxSourceBytes,
		newID:          uuid.NewString,
		logger:         logger,
	}
}

// Matches reports whether text starts with one of the enabled commands.
func (h *Handler) Matches(text string) bool {
	_, _, ok := h.router.Match(text)
	return ok
}

// Handle returns the reply for msg; ok is false when msg carries no command.
func (h *Handler) Handle(ctx context.Context, msg model.Message) (reply string, ok bool) {
	cmd, payload, ok := h.router.Match(msg.Text)
	if !ok {
		return "", false
	}
	log := h.logger.With(zap.String("message_id", msg.MessageID), zap.String("command", cmd.String()))

	code, err := parser.ExtractCode(payload, cmd)
	if err != nil {
		log.Info("command without code block")
		return err.Error(), true
	}

	switch cmd {
	case parser.CommandParse:
		return h.parse(ctx, code, log), true
	case parser.CommandEval:
		return report.Eval(code), true
	case parser.CommandCompile:
		return h.compile(ctx, code, log), true
	}
	panic(fmt.Sprintf("unhandled command %v", cmd))
}

func (h *Handler) parse(ctx context.Context, code string, log *zap.Logger) string {
	items, err := h.syntax.Parse(ctx, code)
	if err != nil {
		log.Debug("parse failed", zap.Error(err))
		return report.ParseFailed(code, err)
	}
	return report.Parsed(items)
}

func (h *Handler) compile(ctx context.Context, code string, log *zap.Logger) string {
	block := parser.SplitLanguage(code)
	switch block.Lang {
	case parser.LangNone:
		log.Info("unsupported compile language")
		return report.Unsupported()
	case parser.LangRust, parser.LangJava, parser.LangSnow:
	}
	log = log.With(zap.String("lang", block.Lang.String()))
	if err := compiler.ValidateSource(block.Body, h.maxSourceBytes); err != nil {
		log.Info("compile rejected", zap.Error(err))
		return report.Rejected(block.Lang, err)
	}

	id := h.newID()
	res := h.compiler.Compile(ctx, id, block)
	fields := []zap.Field{zap.String("request_id", id), zap.Duration("duration", res.Duration)}
	if res.ExitErr != nil {
		fields = append(fields, zap.NamedError("exit", res.ExitErr))
	}
	if res.Err != nil {
		log.Warn(block.Lang.DisplayName()+" compile stage failed", append(fields, zap.Error(res.Err))...)
	} else {
		log.Info(block.Lang.DisplayName()+" compile finished", fields...)
	}
	return report.Compiled(res)
}
