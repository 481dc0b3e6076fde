package dice

import "go.uber.org/zap"

// Roller rolls expressions against a Source and logs every result at debug.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Roll evaluates expr and logs the result.
func (r *Roller) Roll(expr Expression) RollResult {
	res := Roll(expr, r.src)
	if ce := r.logger.Check(zap.DebugLevel, "dice roll"); ce != nil {
		ce.Write(
			zap.String("expression", res.Expression),
			zap.Ints("dice", res.Dice),
			zap.Int("modifier", res.Modifier),
			zap.Int("total", res.Total()),
		)
	}
	return res
}

// Chance reports whether a one-in-n event happens. See Chance.
func (r *Roller) Chance(n int) bool {
	return Chance(r.src, n)
}

// Intn returns a value in [0, n) from the underlying source.
func (r *Roller) Intn(n int) int {
	return r.src.Intn(n)
}
