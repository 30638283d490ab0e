// Package assist runs the three paid flows: guide generation, maintenance chat
// and the general router. Each flow checks quota before the provider call and
// books usage only after a confirmed response.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avnova/sqyros/internal/billing"
	"github.com/avnova/sqyros/internal/guide"
	"github.com/avnova/sqyros/internal/llm"
	"github.com/avnova/sqyros/internal/models"
	"github.com/avnova/sqyros/internal/quota"
	"github.com/avnova/sqyros/internal/routing"
	"github.com/avnova/sqyros/internal/usage"
	"github.com/avnova/sqyros/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// DefaultHistoryTurns is how many prior chat turns are forwarded upstream.
	DefaultHistoryTurns = 10
	messagePreviewRunes = 100
	upstreamFailureText = "Failed to get a response from the AI provider. Please try again."
)

// Caller identifies the authenticated user and the inbound request.
type Caller struct {
	UserID    string
	RequestID string
}

// Deps wires a Service.
type Deps struct {
	DB           *gorm.DB
	LLM          llm.Client
	Quota        *quota.Checker
	Recorder     *usage.Recorder
	Ledger       *usage.Ledger
	Models       llm.ModelSet
	Rates        billing.RateTable
	HistoryTurns int
}

// Service implements the paid flows.
type Service struct {
	db           *gorm.DB
	llm          llm.Client
	quota        *quota.Checker
	recorder     *usage.Recorder
	ledger       *usage.Ledger
	counter      *quota.GormCounter
	models       llm.ModelSet
	rates        billing.RateTable
	historyTurns int
	now          func() time.Time
}

// NewService builds a Service from deps.
func NewService(deps Deps) *Service {
	historyTurns := deps.HistoryTurns
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	rates := deps.Rates
	if rates.Validate() != nil || rates == (billing.RateTable{}) {
		rates = billing.DefaultRates()
	}
	ledger := deps.Ledger
	if ledger == nil {
		ledger = usage.NewLedger(deps.DB)
	}
	return &Service{
		db:           deps.DB,
		llm:          deps.LLM,
		quota:        deps.Quota,
		recorder:     deps.Recorder,
		ledger:       ledger,
		counter:      quota.NewGormCounter(deps.DB),
		models:       deps.Models.WithDefaults(),
		rates:        rates,
		historyTurns: historyTurns,
		now:          time.Now,
	}
}

// UsageMeta is the token and cost summary of one call.
type UsageMeta struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	CostCents    int64 `json:"cost_cents"`
}

// Meta describes how a call was served.
type Meta struct {
	Model     string           `json:"model"`
	TaskType  routing.TaskType `json:"taskType"`
	Reasoning string           `json:"reasoning,omitempty"`
	Usage     UsageMeta        `json:"usage"`
}

// call is one gated provider round-trip.
type call struct {
	caller   Caller
	tier     string
	action   models.ActionType
	decision routing.Decision
	request  llm.Request
	metadata map[string]any
}

// outcome is a booked provider response.
type outcome struct {
	resp  *llm.Response
	tier  routing.Tier
	usage UsageMeta
}

// tierFor resolves the caller's subscription tier, treating lookup failures as free.
func (s *Service) tierFor(ctx context.Context, userID string) string {
	tier, errTier := quota.LookupTier(ctx, s.db, userID)
	if errTier != nil {
		log.WithError(errTier).WithField("user_id", userID).Warn("assist: tier lookup failed; treating as free")
		return models.TierFree
	}
	return tier
}

// run reserves quota, calls the provider, prices the reply and submits it to the ledger.
func (s *Service) run(ctx context.Context, c call) (*outcome, error) {
	periodKey := quota.PeriodKey(c.action, s.now())
	var reservation quota.Reservation
	if s.quota != nil && c.action != models.ActionRoute {
		res, allowed, errCheck := s.quota.CheckAndReserve(ctx, c.caller.UserID, c.tier, c.action, periodKey)
		if errCheck != nil {
			return nil, internalError("Failed to check usage limits", errCheck)
		}
		if !allowed {
			return nil, quotaError(limitMessage(c.action, res))
		}
		reservation = res
	}

	tier := c.decision.ModelTier
	if !tier.Valid() {
		tier = routing.DefaultTier
	}
	c.request.Model = s.models.For(tier)
	c.request.MaxTokens = c.decision.MaxOutputTokens

	resp, errComplete := s.llm.Complete(ctx, c.request)
	if errComplete != nil {
		if s.quota != nil {
			s.quota.Release(context.WithoutCancel(ctx), reservation)
		}
		log.WithError(errComplete).WithFields(log.Fields{
			"user_id":    c.caller.UserID,
			"request_id": c.caller.RequestID,
			"action":     c.action,
			"model":      c.request.Model,
		}).Error("assist: provider call failed")
		return nil, upstreamError(upstreamFailureText, errComplete)
	}

	cost := s.rates.EstimateCostCents(tier, resp.Usage.InputTokens, resp.Usage.OutputTokens)
	model := resp.Model
	if model == "" {
		model = c.request.Model
	}
	resp.Model = model

	if s.recorder != nil {
		s.recorder.Submit(usage.Entry{
			RequestID:    c.caller.RequestID,
			UserID:       c.caller.UserID,
			Action:       c.action,
			Tier:         tier,
			Model:        model,
			TaskType:     c.decision.TaskType,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostCents:    cost,
			Metadata:     c.metadata,
			At:           s.now(),
		})
	}

	return &outcome{
		resp: resp,
		tier: tier,
		usage: UsageMeta{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostCents:    cost,
		},
	}, nil
}

func limitMessage(action models.ActionType, res quota.Reservation) string {
	used := res.Used
	if used > int64(res.Limit) {
		used = int64(res.Limit)
	}
	if action == models.ActionGuide {
		return fmt.Sprintf("Monthly guide limit reached (%d/%d). Upgrade to Pro for unlimited guides.", used, res.Limit)
	}
	return fmt.Sprintf("Daily question limit reached (%d/%d). Upgrade to Pro for unlimited questions.", used, res.Limit)
}

// GuideResult is the reply for a generated guide.
type GuideResult struct {
	Guide guide.Guide `json:"guide"`
	Meta  Meta        `json:"meta"`
}

// GenerateGuide produces an integration guide for req.
func (s *Service) GenerateGuide(ctx context.Context, caller Caller, req guide.Request) (*GuideResult, error) {
	req = req.Normalize()
	if errValidate := req.Validate(); errValidate != nil {
		return nil, validationError("Missing required fields: system, device, connection")
	}

	decision := routing.GuideDecision()
	out, errRun := s.run(ctx, call{
		caller:   caller,
		tier:     s.tierFor(ctx, caller.UserID),
		action:   models.ActionGuide,
		decision: decision,
		request: llm.Request{
			System:   guide.SystemPrompt,
			Messages: []llm.Message{{Role: llm.RoleUser, Content: guide.UserPrompt(req)}},
		},
		metadata: req.Metadata(),
	})
	if errRun != nil {
		return nil, errRun
	}

	parsed, errParse := guide.Parse(out.resp.Text, req)
	if errParse != nil {
		log.WithError(errParse).WithField("request_id", caller.RequestID).Warn("assist: returning degraded guide")
	}
	return &GuideResult{
		Guide: parsed,
		Meta: Meta{
			Model:     out.resp.Model,
			TaskType:  decision.TaskType,
			Reasoning: decision.Reasoning,
			Usage:     out.usage,
		},
	}, nil
}

// ChatRequest is a maintenance question with optional prior turns.
type ChatRequest struct {
	Message             string         `json:"message"`
	ConversationHistory []routing.Turn `json:"conversationHistory"`
}

// ChatResult is the reply to a maintenance question.
type ChatResult struct {
	Response string `json:"response"`
	Meta     Meta   `json:"meta"`
}

// Chat answers a maintenance question.
func (s *Service) Chat(ctx context.Context, caller Caller, req ChatRequest) (*ChatResult, error) {
	decision, errClassify := routing.ClassifyChat(req.Message)
	if errClassify != nil {
		return nil, validationError("Message is required")
	}

	messages := llm.MessagesFromTurns(req.ConversationHistory, s.historyTurns)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})

	out, errRun := s.run(ctx, call{
		caller:   caller,
		tier:     s.tierFor(ctx, caller.UserID),
		action:   models.ActionQuestion,
		decision: decision,
		request:  llm.Request{System: MaintenancePrompt, Messages: messages},
		metadata: map[string]any{"message_preview": util.Truncate(req.Message, messagePreviewRunes)},
	})
	if errRun != nil {
		return nil, errRun
	}
	return &ChatResult{
		Response: out.resp.Text,
		Meta: Meta{
			Model:     out.resp.Model,
			TaskType:  decision.TaskType,
			Reasoning: decision.Reasoning,
			Usage:     out.usage,
		},
	}, nil
}

// RouteRequest is a general routed completion.
type RouteRequest struct {
	UserMessage  string          `json:"userMessage"`
	Context      routing.Context `json:"context"`
	SystemPrompt string          `json:"systemPrompt"`
	ForceModel   string          `json:"forceModel"`
}

// RouteResult is the reply to a routed completion.
type RouteResult struct {
	Content   string           `json:"content"`
	Model     string           `json:"model"`
	TaskType  routing.TaskType `json:"taskType"`
	Reasoning string           `json:"reasoning"`
	Usage     UsageMeta        `json:"usage"`
}

// Route classifies req, honouring forceModel, and forwards it with the full history.
func (s *Service) Route(ctx context.Context, caller Caller, req RouteRequest) (*RouteResult, error) {
	classify := routing.Request{Text: req.UserMessage, Context: req.Context}
	if raw := strings.TrimSpace(req.ForceModel); raw != "" {
		forced, ok := s.models.TierFor(raw)
		if !ok {
			return nil, validationError("invalid forceModel")
		}
		classify.ForcedModel = &forced
	}
	decision, errClassify := routing.Classify(classify)
	if errClassify != nil {
		return nil, validationError("userMessage is required")
	}

	messages := llm.MessagesFromTurns(req.Context.ConversationHistory, 0)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.UserMessage})

	out, errRun := s.run(ctx, call{
		caller:   caller,
		action:   models.ActionRoute,
		decision: decision,
		request:  llm.Request{System: req.SystemPrompt, Messages: messages},
		metadata: map[string]any{"task_type": string(decision.TaskType)},
	})
	if errRun != nil {
		return nil, errRun
	}
	return &RouteResult{
		Content:   out.resp.Text,
		Model:     out.resp.Model,
		TaskType:  decision.TaskType,
		Reasoning: decision.Reasoning,
		Usage:     out.usage,
	}, nil
}

// Allowance is the remaining free allowance; -1 means unlimited.
type Allowance struct {
	GuidesRemaining    int64 `json:"guidesRemaining"`
	GuidesLimit        int   `json:"guidesLimit"`
	QuestionsRemaining int64 `json:"questionsRemaining"`
	QuestionsLimit     int   `json:"questionsLimit"`
}

// UsageReport is the caller's current month and remaining allowance.
type UsageReport struct {
	Tier      string               `json:"tier"`
	Month     usage.MonthlySummary `json:"month"`
	Allowance Allowance            `json:"allowance"`
}

// UsageSummary reports the caller's booked usage for the current month.
func (s *Service) UsageSummary(ctx context.Context, caller Caller) (*UsageReport, error) {
	now := s.now()
	tier := s.tierFor(ctx, caller.UserID)
	month, errSummary := s.ledger.MonthlySummary(ctx, caller.UserID, quota.MonthKey(now))
	if errSummary != nil {
		return nil, internalError("Failed to load usage", errSummary)
	}

	policy := quota.DefaultPolicy().Effective()
	if s.quota != nil {
		policy = s.quota.Policy()
	}
	report := &UsageReport{Tier: tier, Month: month}
	allowance := &report.Allowance

	guides, errGuides := s.counter.Count(ctx, caller.UserID, models.ActionGuide, quota.PeriodKey(models.ActionGuide, now))
	questions, errQuestions := s.counter.Count(ctx, caller.UserID, models.ActionQuestion, quota.PeriodKey(models.ActionQuestion, now))
	if errCount := errors.Join(errGuides, errQuestions); errCount != nil {
		return nil, internalError("Failed to load usage", errCount)
	}
	allowance.GuidesRemaining = policy.Remaining(tier, models.ActionGuide, guides)
	allowance.QuestionsRemaining = policy.Remaining(tier, models.ActionQuestion, questions)
	if limit, capped := policy.Limit(tier, models.ActionGuide); capped {
		allowance.GuidesLimit = limit
	} else {
		allowance.GuidesLimit = -1
	}
	if limit, capped := policy.Limit(tier, models.ActionQuestion); capped {
		allowance.QuestionsLimit = limit
	} else {
		allowance.QuestionsLimit = -1
	}
	return report, nil
}
