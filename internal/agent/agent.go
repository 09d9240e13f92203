// Package agent runs the question-answering loop: a language model that
// may call registered tools to gather evidence before answering.
//
// Each exchange is bounded. The model gets a fixed budget of tool calls;
// when the budget runs out it is asked one final time, without tools, to
// answer from what it has gathered. A transient model failure is retried
// once; anything beyond that aborts the exchange with the session left
// exactly as it was.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/muhammadhamza78/rag-chatbot-sub001/internal/session"
)

const (
	// MaxQueryLen bounds user queries in characters.
	MaxQueryLen = 1000

	// DefaultMaxToolCalls is the tool budget per exchange.
	DefaultMaxToolCalls = 4
)

// Sentinel errors for callers to branch on.
var (
	ErrEmptyQuery       = errors.New("query is empty")
	ErrQueryTooLong     = errors.New("query too long")
	ErrModelUnavailable = errors.New("model unavailable")
)

// TransientError marks a model failure worth one retry. Adapters wrap
// provider errors with it when the failure is a timeout, rate limit, or
// server-side error.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

const systemPrompt = `You are a documentation assistant for the Physical AI book,
which covers robotics, ROS 2, simulation, and embodied AI.

Answer questions using ONLY evidence retrieved with the ` + RetrieveToolName + ` tool.
Call the tool before answering whenever the question is about the book's content.
Cite the sources you used by their [Source N] markers. If the retrieved
evidence does not cover the question, say so plainly instead of guessing.`

// budgetExhaustedResult is returned for tool calls past the per-exchange
// budget, without executing them.
const budgetExhaustedResult = "Tool call budget exhausted. Answer using the evidence already retrieved."

// Answer is the outcome of one exchange.
type Answer struct {
	Text string
	// EvidenceCount is how many sources the exchange surfaced in total.
	EvidenceCount int
	// Degraded is set when the tool budget ran out and the model was
	// forced to answer without further retrieval.
	Degraded bool
	Usage    session.Usage
}

// Orchestrator drives exchanges between user, model, and tools.
// Orchestrator is safe for concurrent use; exchanges on the same session
// are serialized, exchanges on different sessions proceed independently.
type Orchestrator struct {
	model        ModelClient
	registry     *Registry
	sessions     *session.Store
	maxToolCalls int
	logger       *slog.Logger
}

// New creates an Orchestrator. maxToolCalls of zero selects the default.
func New(model ModelClient, registry *Registry, sessions *session.Store, maxToolCalls int, logger *slog.Logger) (*Orchestrator, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if maxToolCalls < 0 {
		return nil, fmt.Errorf("maxToolCalls must not be negative, got %d", maxToolCalls)
	}
	if maxToolCalls == 0 {
		maxToolCalls = DefaultMaxToolCalls
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		model:        model,
		registry:     registry,
		sessions:     sessions,
		maxToolCalls: maxToolCalls,
		logger:       logger,
	}, nil
}

// Answer runs one full exchange for the query in the given session.
// On success the exchange is appended to the session transcript; on any
// error the session is left unchanged.
func (o *Orchestrator) Answer(ctx context.Context, sessionID, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if utf8.RuneCountInString(query) > MaxQueryLen {
		return nil, fmt.Errorf("%w: %d characters, limit %d",
			ErrQueryTooLong, utf8.RuneCountInString(query), MaxQueryLen)
	}

	// A caller without a session id gets a fresh ephemeral session.
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess, err := o.sessions.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}

	// The whole exchange holds the session lock, so concurrent queries on
	// one session see each other's completed exchanges, never a partial one.
	sess.Lock()
	defer sess.Unlock()

	answer, err := o.run(ctx, sess, query)
	if err != nil {
		return nil, err
	}

	sess.AppendExchangeLocked(query, answer.Text)
	sess.AddUsageLocked(answer.Usage)
	return answer, nil
}

func (o *Orchestrator) run(ctx context.Context, sess *session.Session, query string) (*Answer, error) {
	messages := transcriptMessages(sess.HistoryLocked())
	messages = append(messages, Message{Role: roleUser, Text: query})

	var usage session.Usage
	var evidence int
	toolCalls := 0

	for {
		req := &GenerateRequest{
			System:   systemPrompt,
			Messages: messages,
			Tools:    o.registry.Specs(),
		}
		degraded := toolCalls >= o.maxToolCalls
		if degraded {
			// Budget spent: force a final answer from gathered evidence.
			req.Tools = nil
		}

		resp, err := o.generate(ctx, req)
		if err != nil {
			return nil, err
		}
		usage = usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 || degraded {
			return &Answer{
				Text:          resp.Text,
				EvidenceCount: evidence,
				Degraded:      degraded,
				Usage:         usage,
			}, nil
		}

		for _, call := range resp.ToolCalls {
			// One response may carry more calls than the budget allows.
			// Calls past the limit get a refusal result instead of
			// executing, so every call still has an answer on record.
			if toolCalls >= o.maxToolCalls {
				o.logger.Warn("tool call refused, budget exhausted",
					"tool", call.Name, "budget", o.maxToolCalls)
				messages = append(messages,
					Message{Role: roleAssistant, ToolCall: &call},
					Message{Role: roleTool, ToolName: call.Name, ToolResult: budgetExhaustedResult},
				)
				continue
			}

			toolCalls++
			result, err := o.registry.Execute(ctx, call)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", call.Name, err)
			}
			evidence += result.Evidence

			o.logger.Debug("tool call",
				"tool", call.Name, "call_number", toolCalls, "evidence", result.Evidence)

			messages = append(messages,
				Message{Role: roleAssistant, ToolCall: &call},
				Message{Role: roleTool, ToolName: call.Name, ToolResult: result.Content},
			)
		}
	}
}

// generate calls the model, retrying a transient failure once.
func (o *Orchestrator) generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	resp, err := o.model.Generate(ctx, req)
	if err == nil {
		return resp, nil
	}

	var te *TransientError
	if !errors.As(err, &te) {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	o.logger.Warn("model call failed, retrying once", "error", err)
	resp, err = o.model.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	return resp, nil
}

// transcriptMessages converts session history into model messages.
func transcriptMessages(turns []session.Turn) []Message {
	messages := make([]Message, 0, len(turns)+1)
	for _, t := range turns {
		role := roleUser
		if t.Role == session.RoleAssistant {
			role = roleAssistant
		}
		messages = append(messages, Message{Role: role, Text: t.Content})
	}
	return messages
}
