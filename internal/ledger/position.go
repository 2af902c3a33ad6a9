package ledger

import "backtest-lab/internal/domain"

// Position tracks net quantity, volume-weighted average price and realised
// pnl for a single symbol. Qty is signed (+ long, - short). The average
// price is undefined (zero) whenever the quantity returns to exactly zero;
// reducing or closing never moves the average, only the quantity.
type Position struct {
	Qty         float64
	AvgPrice    float64
	RealizedPnL float64
}

// Apply books one execution against the position.
func (p *Position) Apply(e *domain.TradeEvent) {
	switch {
	// Opposite sign: this fill partly or fully closes, possibly flipping side.
	case p.Qty != 0 && e.Qty != 0 && (p.Qty > 0) != (e.Qty > 0):
		closedQty := minAbs(p.Qty, e.Qty)
		if p.Qty < 0 {
			closedQty = -closedQty
		}
		p.RealizedPnL += closedQty * (e.Price - p.AvgPrice)

		p.Qty += e.Qty
		switch {
		case p.Qty == 0:
			p.AvgPrice = 0
		case (p.Qty > 0) == (e.Qty > 0):
			// Flipped through zero into the opposite side.
			p.AvgPrice = e.Price
		}
		// A partial reduce keeps the average; only the quantity moved.

	// Same-side increase (OPEN / DCA): reweight the average.
	case e.Kind == domain.EventOpen:
		notional := p.AvgPrice*p.Qty + e.Price*e.Qty
		p.Qty += e.Qty
		p.AvgPrice = notional / p.Qty

	// Exit against a flat book (or a same-signed reduce): adjust quantity
	// only, nothing to realise.
	case e.IsExit():
		p.Qty += e.Qty
		if p.Qty == 0 {
			p.AvgPrice = 0
		} else if p.AvgPrice == 0 {
			p.AvgPrice = e.Price
		}
	}
}

func minAbs(a, b float64) float64 {
	aa, ab := a, b
	if aa < 0 {
		aa = -aa
	}
	if ab < 0 {
		ab = -ab
	}
	if aa < ab {
		return aa
	}
	return ab
}
