package ordering

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// cutOffLayouts are the accepted time-of-day formats for a canteen cut-off
var cutOffLayouts = []string{"15:04", "15:04:05"}

// PlacementInput is everything the validation rules look at. It is built from
// entities already loaded by the caller; nothing here touches the store.
type PlacementInput struct {
	Parent         *Parent
	Student        *Student
	Canteen        *Canteen
	Menu           Menu
	Lines          []OrderLine
	FulfilmentDate time.Time
	Now            time.Time
}

// Pipeline runs the placement rules in their fixed order:
// cut-off, stock, wallet, allergens. The first failing rule wins.
type Pipeline struct {
	location *time.Location
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithLocation sets the zone in which cut-off times of day are interpreted
func WithLocation(loc *time.Location) PipelineOption {
	return func(p *Pipeline) {
		if loc != nil {
			p.location = loc
		}
	}
}

// NewPipeline creates a validation pipeline. Cut-offs default to UTC.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{location: time.UTC}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Location returns the zone used for cut-off evaluation
func (p *Pipeline) Location() *time.Location {
	return p.location
}

// Validate runs every rule against in and returns the first failure
func (p *Pipeline) Validate(in PlacementInput) error {
	if err := CheckCutOff(in.Canteen, in.FulfilmentDate, in.Now, p.location); err != nil {
		return err
	}
	if err := CheckStock(in.Lines, in.Menu); err != nil {
		return err
	}
	total, err := LinesTotal(in.Lines, in.Menu)
	if err != nil {
		return err
	}
	if err := CheckWallet(in.Parent, total); err != nil {
		return err
	}
	return CheckAllergens(in.Student, menuItemsInLineOrder(in.Lines, in.Menu))
}

// CheckCutOff fails when now is past the canteen cut-off on the fulfilment date.
// A canteen without a cut-off, or with one that does not parse, is not restricted.
func CheckCutOff(canteen *Canteen, fulfilmentDate, now time.Time, loc *time.Location) error {
	cutOff, ok := CutOffInstant(canteen, fulfilmentDate, loc)
	if !ok {
		return nil
	}
	if now.After(cutOff) {
		return NewCutOffExceededError(cutOff, now)
	}
	return nil
}

// CutOffInstant combines the fulfilment date with the canteen's cut-off time of day
func CutOffInstant(canteen *Canteen, fulfilmentDate time.Time, loc *time.Location) (time.Time, bool) {
	if canteen == nil || canteen.OrderCutOffTime == nil {
		return time.Time{}, false
	}
	raw := strings.TrimSpace(*canteen.OrderCutOffTime)
	if raw == "" {
		return time.Time{}, false
	}
	var tod time.Time
	parsed := false
	for _, layout := range cutOffLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			tod = t
			parsed = true
			break
		}
	}
	if !parsed {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := fulfilmentDate.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), tod.Second(), 0, loc), true
}

// CheckStock fails on the first line asking for more than its item's daily counter.
// Items without a counter are unlimited.
func CheckStock(lines []OrderLine, menu Menu) error {
	for _, line := range lines {
		item, ok := menu[line.MenuItemID]
		if !ok {
			return NewNotFoundError(EntityMenuItem, line.MenuItemID)
		}
		if item.DailyStockCount == nil {
			continue
		}
		if available := *item.DailyStockCount; line.Quantity > available {
			return NewInsufficientStockError(item, line.Quantity, available)
		}
	}
	return nil
}

// CheckWallet fails when the parent's balance is below total
func CheckWallet(parent *Parent, total decimal.Decimal) error {
	if parent.WalletBalance.LessThan(total) {
		return NewInsufficientBalanceError(total, parent.WalletBalance)
	}
	return nil
}

// CheckAllergens fails on the first item sharing a tag with the student's
// allergens. Tags compare trimmed and case-folded.
func CheckAllergens(student *Student, items []*MenuItem) error {
	allergens := normalizeTags(student.Allergens)
	if len(allergens) == 0 {
		return nil
	}
	for _, item := range items {
		itemTags := normalizeTags(item.AllergenTags)
		if len(itemTags) == 0 {
			continue
		}
		present := make(map[string]struct{}, len(itemTags))
		for _, t := range itemTags {
			present[t] = struct{}{}
		}
		var conflicts []string
		for _, a := range allergens {
			if _, ok := present[a]; ok {
				conflicts = append(conflicts, a)
			}
		}
		if len(conflicts) > 0 {
			return NewAllergenConflictError(student.Name, item.Name, conflicts)
		}
	}
	return nil
}

// LinesTotal sums quantity x current price over requested lines
func LinesTotal(lines []OrderLine, menu Menu) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, line := range lines {
		price, ok := menu.Price(line.MenuItemID)
		if !ok {
			return decimal.Zero, NewNotFoundError(EntityMenuItem, line.MenuItemID)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total, nil
}

func menuItemsInLineOrder(lines []OrderLine, menu Menu) []*MenuItem {
	items := make([]*MenuItem, 0, len(lines))
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		if _, dup := seen[line.MenuItemID]; dup {
			continue
		}
		seen[line.MenuItemID] = struct{}{}
		if item, ok := menu[line.MenuItemID]; ok {
			items = append(items, item)
		}
	}
	return items
}
