// Package assistant answers admin questions about orders with a Gemini
// function-calling agent.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"grocery-checkout/internal/database"
	"grocery-checkout/internal/models"
	"grocery-checkout/internal/orders"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const (
	DefaultModel  = "gemini-2.0-flash-001"
	maxToolRounds = 5
	dateLayout    = "2006-01-02"
)

// Backend is what the agent's tools may read and change.
type Backend interface {
	ListAllOrders(ctx context.Context, f orders.Filter) (*orders.Page, error)
	OrderByNumber(ctx context.Context, number string) (*models.Order, error)
	SetStatus(ctx context.Context, id string, status models.OrderStatus, note string) (*models.Order, error)
	SalesSummary(ctx context.Context, start, end time.Time) (*database.SalesSummary, error)
}

type Agent struct {
	client  *genai.Client
	model   string
	backend Backend
	log     zerolog.Logger
	now     func() time.Time
}

func NewAgent(ctx context.Context, apiKey, model string, backend Backend, log zerolog.Logger) (*Agent, error) {
	if apiKey == "" {
		return nil, errors.New("assistant: GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("assistant: client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Agent{
		client:  client,
		model:   model,
		backend: backend,
		log:     log.With().Str("component", "assistant").Logger(),
		now:     time.Now,
	}, nil
}

func (a *Agent) Close() error {
	return a.client.Close()
}

func (a *Agent) systemPrompt() string {
	return fmt.Sprintf(`Today is %s. You are the order desk assistant of an online grocery shop.

RULES:
1. Orders are identified by their order number (e.g. ORD260314000012). Never ask the admin for an internal ID.
2. To change an order's status call 'update_order_status'. Valid statuses: %s.
3. For questions about one order call 'get_order'. For lists or counts call 'list_orders'.
4. For revenue or sales questions call 'get_sales_report'. Dates are YYYY-MM-DD and both ends are inclusive.
5. Amounts are in taka. Answer briefly.`, a.now().Format(dateLayout), statusList())
}

func statusList() string {
	names := make([]string, 0, len(models.OrderStatuses()))
	for _, s := range models.OrderStatuses() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func tools() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "list_orders",
				Description: "List orders newest first, optionally only those in one status.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"status": {Type: genai.TypeString, Description: "Only orders in this status"},
						"page":   {Type: genai.TypeInteger, Description: "Page number, starting at 1"},
						"limit":  {Type: genai.TypeInteger, Description: "Orders per page, at most 100"},
					},
				},
			},
			{
				Name:        "get_order",
				Description: "Get one order with its items and status history.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"order_number": {Type: genai.TypeString, Description: "Order number, e.g. ORD260314000012"},
					},
					Required: []string{"order_number"},
				},
			},
			{
				Name:        "update_order_status",
				Description: "Move an order to a new status. Cancelling returns its stock.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"order_number": {Type: genai.TypeString, Description: "Order number"},
						"status":       {Type: genai.TypeString, Description: "New status"},
						"note":         {Type: genai.TypeString, Description: "Optional note for the history"},
					},
					Required: []string{"order_number", "status"},
				},
			},
			{
				Name:        "get_sales_report",
				Description: "Get revenue and order counts for a date range.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"start_date": {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
						"end_date":   {Type: genai.TypeString, Description: "End date (YYYY-MM-DD)"},
					},
					Required: []string{"start_date", "end_date"},
				},
			},
		},
	}}
}

// Ask runs one admin question through the model, executing tool calls until
// the model answers in text.
func (a *Agent) Ask(ctx context.Context, message string) (string, error) {
	model := a.client.GenerativeModel(a.model)
	model.Tools = tools()
	model.SystemInstruction = genai.NewUserContent(genai.Text(a.systemPrompt()))

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("assistant: send: %w", err)
	}

	for round := 0; round < maxToolRounds; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			return responseText(resp), nil
		}

		replies := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			a.log.Info().Str("tool", call.Name).Interface("args", call.Args).Msg("tool call")
			replies = append(replies, genai.FunctionResponse{
				Name:     call.Name,
				Response: a.executeTool(ctx, call),
			})
		}
		resp, err = session.SendMessage(ctx, replies...)
		if err != nil {
			return "", fmt.Errorf("assistant: send tool results: %w", err)
		}
	}
	return responseText(resp), nil
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []genai.FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if call, ok := part.(genai.FunctionCall); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "I completed the action."
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "I completed the action."
	}
	return b.String()
}
