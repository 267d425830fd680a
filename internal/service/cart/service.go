package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lingxian-cart/internal/domain"
)

// UnknownMerchantName labels a group whose merchant row no longer exists.
const UnknownMerchantName = "Unknown merchant"

var (
	errLoginRequired    = domain.NewBusinessError(domain.CodeUnauthorized, "Please log in first")
	errProductRequired  = domain.NewBusinessError(domain.CodeBadRequest, "Product id is required")
	errQuantityInvalid  = domain.NewBusinessError(domain.CodeBadRequest, "Quantity must be greater than 0")
	errProductNotExist  = domain.NewBusinessError(domain.CodeProductNotExist, "Product does not exist")
	errProductOffShelf  = domain.NewBusinessError(domain.CodeProductOffShelf, "Product is off the shelf")
	errStockNotEnough   = domain.NewBusinessError(domain.CodeStockNotEnough, "Insufficient stock")
	errCartItemNotFound = domain.NewBusinessError(domain.CodeNotFound, "Cart item not found")
)

type lineRepo interface {
	ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error)
	GetByID(ctx context.Context, userID, id string) (*domain.CartLine, error)
	Merge(ctx context.Context, line domain.CartLine, limit int) (*domain.CartLine, bool, error)
	UpdateQuantity(ctx context.Context, userID, id string, quantity int) error
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
	SetSelected(ctx context.Context, userID, id string, selected bool) error
	SetSelectedByMerchant(ctx context.Context, userID, merchantID string, selected bool) (int64, error)
	SetSelectedAll(ctx context.Context, userID string, selected bool) (int64, error)
}

type catalogRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	ListByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	MerchantsByIDs(ctx context.Context, ids []string) (map[string]domain.Merchant, error)
}

// Service implements the user cart endpoints. Validation failures come back as
// *domain.BusinessError; anything else is an infrastructure failure.
type Service struct {
	lines   lineRepo
	catalog catalogRepo
	logger  *zap.Logger
}

func New(lines lineRepo, catalog catalogRepo, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{lines: lines, catalog: catalog, logger: logger}
}

// ItemView is one line of the list response.
type ItemView struct {
	domain.CartItem
	Subtotal decimal.Decimal `json:"subtotal"`
}

// GroupView is one merchant group of the list response.
type GroupView struct {
	MerchantID    string          `json:"merchantId"`
	MerchantName  string          `json:"merchantName"`
	MerchantLogo  string          `json:"merchantLogo,omitempty"`
	Items         []ItemView      `json:"items"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	SelectedPrice decimal.Decimal `json:"selectedPrice"`
	AllSelected   bool            `json:"allSelected"`
}

// View is the list response payload.
type View struct {
	Groups        []GroupView     `json:"merchantGroups"`
	TotalCount    int             `json:"totalCount"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	SelectedCount int             `json:"selectedCount"`
	SelectedPrice decimal.Decimal `json:"selectedPrice"`
}

// List returns the user's cart grouped by merchant. Groups follow the order in
// which their merchant first appears among the lines, newest-updated first.
func (s *Service) List(ctx context.Context, userID string) (*View, error) {
	if userID == "" {
		return nil, errLoginRequired
	}
	lines, err := s.lines.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &View{Groups: []GroupView{}}
	if len(lines) == 0 {
		return view, nil
	}

	productIDs := make([]string, 0, len(lines))
	merchantIDs := make([]string, 0)
	seenMerchant := make(map[string]int)
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
		if _, ok := seenMerchant[line.MerchantID]; !ok {
			seenMerchant[line.MerchantID] = len(merchantIDs)
			merchantIDs = append(merchantIDs, line.MerchantID)
		}
	}
	products, err := s.catalog.ListByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	merchants, err := s.catalog.MerchantsByIDs(ctx, merchantIDs)
	if err != nil {
		return nil, err
	}

	groups := make([]GroupView, len(merchantIDs))
	for i, id := range merchantIDs {
		groups[i] = GroupView{MerchantID: id, MerchantName: UnknownMerchantName, Items: []ItemView{}, AllSelected: true}
		if m, ok := merchants[id]; ok {
			groups[i].MerchantName = m.Name
			groups[i].MerchantLogo = m.Logo
		}
	}

	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			s.logger.Debug("cart list: skipping line without product", zap.String("line_id", line.ID), zap.String("product_id", line.ProductID))
			continue
		}
		g := &groups[seenMerchant[line.MerchantID]]
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		g.Items = append(g.Items, ItemView{
			CartItem: domain.CartItem{
				ID:         line.ID,
				ProductID:  line.ProductID,
				MerchantID: line.MerchantID,
				Name:       product.Name,
				Image:      product.Image,
				Price:      product.Price,
				Quantity:   line.Quantity,
				Selected:   line.Selected,
				Stock:      product.Stock,
				Status:     product.Status,
			},
			Subtotal: subtotal,
		})
		g.TotalPrice = g.TotalPrice.Add(subtotal)
		view.TotalCount += line.Quantity
		view.TotalPrice = view.TotalPrice.Add(subtotal)
		if line.Selected {
			g.SelectedPrice = g.SelectedPrice.Add(subtotal)
			view.SelectedCount += line.Quantity
			view.SelectedPrice = view.SelectedPrice.Add(subtotal)
		} else {
			g.AllSelected = false
		}
	}

	for _, g := range groups {
		// A merchant whose every product vanished contributes no group.
		if len(g.Items) > 0 {
			view.Groups = append(view.Groups, g)
		}
	}
	return view, nil
}

// Add puts quantity units of a product into the cart, merging with an
// existing line for the same product.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) error {
	if userID == "" {
		return errLoginRequired
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return errProductRequired
	}
	if quantity < 1 {
		return errQuantityInvalid
	}

	product, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errProductNotExist
		}
		return err
	}
	if product.Status != domain.ProductOnShelf {
		return errProductOffShelf
	}
	if product.Stock < quantity {
		return errStockNotEnough
	}

	line, merged, err := s.lines.Merge(ctx, domain.CartLine{
		UserID:     userID,
		MerchantID: product.MerchantID,
		ProductID:  product.ID,
		Quantity:   quantity,
		Price:      product.Price,
		Selected:   true,
	}, product.Stock)
	if err != nil {
		if errors.Is(err, domain.ErrQuantityLimit) {
			return errStockNotEnough
		}
		return err
	}
	if merged {
		s.logger.Info("cart line merged", zap.String("user_id", userID), zap.String("line_id", line.ID), zap.Int("quantity", line.Quantity))
	} else {
		s.logger.Info("cart line added", zap.String("user_id", userID), zap.String("line_id", line.ID), zap.Int("quantity", quantity))
	}
	return nil
}

// UpdateQuantity sets the quantity of one of the user's lines.
func (s *Service) UpdateQuantity(ctx context.Context, userID, id string, quantity int) error {
	if userID == "" {
		return errLoginRequired
	}
	if quantity < 1 {
		return errQuantityInvalid
	}
	line, err := s.lines.GetByID(ctx, userID, id)
	if err != nil {
		return notFound(err)
	}
	product, err := s.catalog.GetByID(ctx, line.ProductID)
	switch {
	case err == nil:
		if quantity > product.Stock {
			return errStockNotEnough
		}
	case errors.Is(err, domain.ErrNotFound):
		// Vanished products are not stock-checked; the line is hidden from lists anyway.
	default:
		return err
	}
	return notFound(s.lines.UpdateQuantity(ctx, userID, id, quantity))
}

func (s *Service) Remove(ctx context.Context, userID, id string) error {
	if userID == "" {
		return errLoginRequired
	}
	return notFound(s.lines.Delete(ctx, userID, id))
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return errLoginRequired
	}
	n, err := s.lines.DeleteAll(ctx, userID)
	if err != nil {
		return err
	}
	s.logger.Info("cart cleared", zap.String("user_id", userID), zap.Int64("lines", n))
	return nil
}

func (s *Service) Select(ctx context.Context, userID, id string, selected bool) error {
	if userID == "" {
		return errLoginRequired
	}
	return notFound(s.lines.SetSelected(ctx, userID, id, selected))
}

// SelectMerchant applies selected to every line of one merchant. A merchant
// without lines is not an error.
func (s *Service) SelectMerchant(ctx context.Context, userID, merchantID string, selected bool) error {
	if userID == "" {
		return errLoginRequired
	}
	_, err := s.lines.SetSelectedByMerchant(ctx, userID, merchantID, selected)
	return err
}

func (s *Service) SelectAll(ctx context.Context, userID string, selected bool) error {
	if userID == "" {
		return errLoginRequired
	}
	_, err := s.lines.SetSelectedAll(ctx, userID, selected)
	return err
}

func notFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return errCartItemNotFound
	}
	return err
}
