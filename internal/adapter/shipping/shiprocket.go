package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
)

type ShiprocketConfig struct {
	BaseURL        string // https://apiv2.shiprocket.in/v1/external
	Email          string
	Password       string
	PickupLocation string
	Timeout        time.Duration
}

// Shiprocket talks to the courier aggregator's REST API. All calls are
// bounded by the client timeout; a failed call leaves no local state
// behind (fail closed is the caller's concern, this adapter just never
// fabricates a tracking id).
type Shiprocket struct {
	cfg    ShiprocketConfig
	client *http.Client
	tokens *TokenCache
}

func NewShiprocket(cfg ShiprocketConfig) *Shiprocket {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	s := &Shiprocket{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
	s.tokens = NewTokenCache(s.login)
	return s
}

func (s *Shiprocket) login(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    s.cfg.Email,
		"password": s.cfg.Password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("shiprocket login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("shiprocket login: status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("shiprocket login: empty token")
	}
	return out.Token, nil
}

func (s *Shiprocket) do(ctx context.Context, method, path string, payload, out any) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return err
	}
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("shiprocket %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		s.tokens.Invalidate()
		return fmt.Errorf("shiprocket %s: unauthorized", path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("shiprocket %s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

type shipmentItem struct {
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	Units        int    `json:"units"`
	SellingPrice string `json:"selling_price"`
}

func orderItems(o *domain.Order) []shipmentItem {
	items := make([]shipmentItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, shipmentItem{
			Name:         it.Title,
			SKU:          it.ProductID,
			Units:        it.Qty,
			SellingPrice: it.Price.Rupees(),
		})
	}
	return items
}

type createOrderResp struct {
	ShipmentID  json.Number `json:"shipment_id"`
	AWBCode     string      `json:"awb_code"`
	CourierName string      `json:"courier_name"`
}

// CreateShipment books a forward shipment. The AWB may be assigned
// later by the carrier, in which case TrackingID comes back empty.
func (s *Shiprocket) CreateShipment(ctx context.Context, o *domain.Order) (usecase.Shipment, error) {
	payload := map[string]any{
		"order_id":              o.OrderNumber,
		"order_date":            o.CreatedAt.Format("2006-01-02"),
		"pickup_location":       s.cfg.PickupLocation,
		"billing_customer_name": o.ShippingAddress.Name,
		"billing_phone":         o.ShippingAddress.Phone,
		"billing_address":       o.ShippingAddress.Street,
		"billing_city":          o.ShippingAddress.City,
		"billing_state":         o.ShippingAddress.State,
		"billing_pincode":       o.ShippingAddress.Pincode,
		"billing_country":       o.ShippingAddress.Country,
		"shipping_is_billing":   true,
		"order_items":           orderItems(o),
		"payment_method":        "Prepaid",
		"sub_total":             o.Subtotal.Rupees(),
		"length":                10,
		"breadth":               10,
		"height":                10,
		"weight":                0.5,
	}
	var out createOrderResp
	if err := s.do(ctx, http.MethodPost, "/orders/create/adhoc", payload, &out); err != nil {
		return usecase.Shipment{}, err
	}
	return usecase.Shipment{
		ShipmentID:  out.ShipmentID.String(),
		TrackingID:  out.AWBCode,
		CourierName: out.CourierName,
	}, nil
}

// TrackShipment returns the courier's current status string for an AWB.
func (s *Shiprocket) TrackShipment(ctx context.Context, awb string) (string, error) {
	var out struct {
		TrackingData struct {
			ShipmentTrack []struct {
				CurrentStatus string `json:"current_status"`
			} `json:"shipment_track"`
		} `json:"tracking_data"`
	}
	if err := s.do(ctx, http.MethodGet, "/courier/track/awb/"+awb, nil, &out); err != nil {
		return "", err
	}
	if len(out.TrackingData.ShipmentTrack) == 0 {
		return "", fmt.Errorf("no tracking data for awb %s", awb)
	}
	return out.TrackingData.ShipmentTrack[0].CurrentStatus, nil
}

func (s *Shiprocket) CancelShipment(ctx context.Context, shipmentID string) error {
	return s.do(ctx, http.MethodPost, "/orders/cancel", map[string]any{"ids": []string{shipmentID}}, nil)
}

// CreateReturnPickup books the reverse shipment: pickup from the
// customer's address back to the warehouse.
func (s *Shiprocket) CreateReturnPickup(ctx context.Context, o *domain.Order) (usecase.Shipment, error) {
	payload := map[string]any{
		"order_id":             "RET-" + o.OrderNumber,
		"order_date":           time.Now().Format("2006-01-02"),
		"pickup_customer_name": o.ShippingAddress.Name,
		"pickup_phone":         o.ShippingAddress.Phone,
		"pickup_address":       o.ShippingAddress.Street,
		"pickup_city":          o.ShippingAddress.City,
		"pickup_state":         o.ShippingAddress.State,
		"pickup_pincode":       o.ShippingAddress.Pincode,
		"pickup_country":       o.ShippingAddress.Country,
		"order_items":          orderItems(o),
		"payment_method":       "Prepaid",
		"sub_total":            o.Subtotal.Rupees(),
		"length":               10,
		"breadth":              10,
		"height":               10,
		"weight":               0.5,
	}
	var out createOrderResp
	if err := s.do(ctx, http.MethodPost, "/orders/create/return", payload, &out); err != nil {
		return usecase.Shipment{}, err
	}
	return usecase.Shipment{
		ShipmentID:  out.ShipmentID.String(),
		TrackingID:  out.AWBCode,
		CourierName: out.CourierName,
	}, nil
}

var _ usecase.ShippingProvider = (*Shiprocket)(nil)
