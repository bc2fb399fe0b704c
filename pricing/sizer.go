package pricing

// AsymmetricSizer scales bid and ask sizes away from a growing inventory:
//
//	bid = base·max(0, 1 − q/Q_max)
//	ask = base·max(0, 1 + q/Q_max)
//
// clamped to [0, 2·base]. At q=+Q_max the bid goes to zero; at q=−Q_max the
// ask goes to zero.
type AsymmetricSizer struct{}

func NewAsymmetricSizer(Params) *AsymmetricSizer { return &AsymmetricSizer{} }

func (AsymmetricSizer) Sizes(inventory, maxInventory, baseSize int64) (int64, int64) {
	if maxInventory == 0 {
		return baseSize, baseSize
	}
	ratio := float64(inventory) / float64(maxInventory)
	bid := scale(baseSize, 1-ratio)
	ask := scale(baseSize, 1+ratio)
	return bid, ask
}

func scale(base int64, factor float64) int64 {
	if factor < 0 {
		factor = 0
	}
	if factor > 2 {
		factor = 2
	}
	return int64(float64(base)*factor + 0.5)
}

// SymmetricSizer 双边同量
type SymmetricSizer struct{}

func NewSymmetricSizer(Params) *SymmetricSizer { return &SymmetricSizer{} }

func (SymmetricSizer) Sizes(_, _, baseSize int64) (int64, int64) {
	return baseSize, baseSize
}
