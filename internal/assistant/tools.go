package assistant

import (
	"context"
	"fmt"
	"time"

	"grocery-checkout/internal/models"
	"grocery-checkout/internal/orders"

	"github.com/google/generative-ai-go/genai"
)

// executeTool runs one model tool call against the backend. Failures are
// reported back to the model as {"error": ...} rather than aborting the chat.
func (a *Agent) executeTool(ctx context.Context, call genai.FunctionCall) map[string]any {
	var (
		out map[string]any
		err error
	)
	switch call.Name {
	case "list_orders":
		out, err = a.listOrders(ctx, call.Args)
	case "get_order":
		out, err = a.getOrder(ctx, call.Args)
	case "update_order_status":
		out, err = a.updateStatus(ctx, call.Args)
	case "get_sales_report":
		out, err = a.salesReport(ctx, call.Args)
	default:
		err = fmt.Errorf("unknown tool %q", call.Name)
	}
	if err != nil {
		a.log.Warn().Err(err).Str("tool", call.Name).Msg("tool failed")
		return map[string]any{"error": err.Error()}
	}
	return out
}

func (a *Agent) listOrders(ctx context.Context, args map[string]any) (map[string]any, error) {
	f := orders.Filter{
		Page:   intArg(args, "page"),
		Limit:  intArg(args, "limit"),
		Status: models.OrderStatus(stringArg(args, "status")),
	}
	page, err := a.backend.ListAllOrders(ctx, f)
	if err != nil {
		return nil, err
	}

	list := make([]map[string]any, 0, len(page.Orders))
	for i := range page.Orders {
		list = append(list, orderSummary(&page.Orders[i]))
	}
	return map[string]any{
		"orders": list,
		"total":  page.Total,
		"page":   page.Page,
		"pages":  page.Pages,
	}, nil
}

func (a *Agent) getOrder(ctx context.Context, args map[string]any) (map[string]any, error) {
	order, err := a.backend.OrderByNumber(ctx, stringArg(args, "order_number"))
	if err != nil {
		return nil, err
	}

	out := orderSummary(order)
	items := make([]map[string]any, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]any{
			"name":     item.Name,
			"variant":  item.VariantLabel,
			"quantity": item.Quantity,
			"price":    item.Price.StringFixed(2),
		})
	}
	history := make([]map[string]any, 0, len(order.StatusHistory))
	for _, h := range order.StatusHistory {
		history = append(history, map[string]any{
			"status": string(h.Status),
			"note":   h.Note,
			"at":     h.CreatedAt.Format(time.RFC3339),
		})
	}
	out["items"] = items
	out["history"] = history
	out["city"] = order.ShippingAddress.City
	out["contact_phone"] = order.ContactPhone
	return out, nil
}

func (a *Agent) updateStatus(ctx context.Context, args map[string]any) (map[string]any, error) {
	status := models.OrderStatus(stringArg(args, "status"))
	if !status.Valid() {
		return nil, fmt.Errorf("unknown status %q, use one of: %s", status, statusList())
	}
	order, err := a.backend.OrderByNumber(ctx, stringArg(args, "order_number"))
	if err != nil {
		return nil, err
	}

	note := stringArg(args, "note")
	if note == "" {
		note = "Updated by admin assistant"
	}
	updated, err := a.backend.SetStatus(ctx, order.ID, status, note)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"order_number": updated.OrderNumber,
		"previous":     string(order.Status),
		"status":       string(updated.Status),
	}, nil
}

func (a *Agent) salesReport(ctx context.Context, args map[string]any) (map[string]any, error) {
	start, err := time.Parse(dateLayout, stringArg(args, "start_date"))
	if err != nil {
		return nil, fmt.Errorf("start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse(dateLayout, stringArg(args, "end_date"))
	if err != nil {
		return nil, fmt.Errorf("end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end_date is before start_date")
	}

	report, err := a.backend.SalesSummary(ctx, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	byStatus := make(map[string]any, len(report.ByStatus))
	for status, n := range report.ByStatus {
		byStatus[string(status)] = n
	}
	return map[string]any{
		"revenue":     report.TotalRevenue.StringFixed(2),
		"order_count": report.TotalOrders,
		"by_status":   byStatus,
	}, nil
}

func orderSummary(o *models.Order) map[string]any {
	return map[string]any{
		"order_number":   o.OrderNumber,
		"status":         string(o.Status),
		"payment_method": string(o.PaymentMethod),
		"payment_status": string(o.PaymentStatus),
		"total":          o.TotalAmount.StringFixed(2),
		"items":          len(o.Items),
		"created_at":     o.CreatedAt.Format(time.RFC3339),
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg accepts the float64 JSON numbers arrive as.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}
