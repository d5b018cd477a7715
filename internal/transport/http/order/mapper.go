package order

import (
	"github.com/Additional-Code/upfit/internal/dto"
	"github.com/Additional-Code/upfit/internal/entity"
	service "github.com/Additional-Code/upfit/internal/service/order"
)

func toDTO(order *entity.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:                  order.ID,
		DealerCode:          order.DealerCode,
		UpfitterID:          order.UpfitterID,
		Status:              string(order.Status),
		StatusLabel:         order.Status.Label(),
		OEMEta:              order.OEMEta,
		UpfitterEta:         order.UpfitterEta,
		DeliveryEta:         order.DeliveryEta,
		Build:               order.Build,
		Pricing:             order.Pricing,
		InventoryStatus:     order.InventoryStatus,
		IsStock:             order.IsStock,
		BuyerName:           order.BuyerName,
		DealerWebsiteStatus: order.DealerWebsiteStatus,
		StockNumber:         order.StockNumber,
		VIN:                 order.VIN,
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
}

func toEventDTO(e *entity.OrderEvent) dto.EventResponse {
	out := dto.EventResponse{
		ID:      e.ID,
		OrderID: e.OrderID,
		From:    string(e.From),
		To:      string(e.To),
		ToLabel: e.To.Label(),
		At:      e.At,
	}
	if e.From != "" {
		out.FromLabel = e.From.Label()
	}
	return out
}

func toNoteDTO(n *entity.OrderNote) dto.NoteResponse {
	return dto.NoteResponse{ID: n.ID, OrderID: n.OrderID, Text: n.Text, User: n.User, At: n.At}
}

func toDetailDTO(d *service.OrderDetail) dto.OrderDetailResponse {
	events := make([]dto.EventResponse, 0, len(d.Events))
	for _, e := range d.Events {
		events = append(events, toEventDTO(e))
	}
	return dto.OrderDetailResponse{Order: toDTO(d.Order), Events: events}
}

func toTransitionDTO(res *service.TransitionResult) dto.TransitionResponse {
	return dto.TransitionResponse{
		ID:          res.Order.ID,
		Status:      string(res.Order.Status),
		StatusLabel: res.Order.Status.Label(),
		VIN:         res.Order.VIN,
		Event:       toEventDTO(res.Event),
	}
}
