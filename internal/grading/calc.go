package grading

// Letter is a discrete grade bucket derived from a percentage via fixed
// inclusive lower-bound thresholds.
type Letter string

const (
	LetterAPlus Letter = "A+"
	LetterA     Letter = "A"
	LetterBPlus Letter = "B+"
	LetterB     Letter = "B"
	LetterCPlus Letter = "C+"
	LetterC     Letter = "C"
	LetterD     Letter = "D"
	LetterF     Letter = "F"
)

var letterWeights = map[Letter]float64{
	LetterAPlus: 4.0,
	LetterA:     4.0,
	LetterBPlus: 3.5,
	LetterB:     3.0,
	LetterCPlus: 2.5,
	LetterC:     2.0,
	LetterD:     1.0,
	LetterF:     0.0,
}

// Weight returns the GPA weight for l. Unknown letters weigh 0 rather than
// erroring.
func (l Letter) Weight() float64 { return letterWeights[l] }

// Percentage converts a raw score against a maximum. Nil score or a zero
// maximum yields nil. No rounding here; formatting is a presentation concern.
func Percentage(score *float64, maxScore float64) *float64 {
	if score == nil || maxScore == 0 {
		return nil
	}
	p := 100 * *score / maxScore
	return &p
}

// LetterFromPercentage buckets a percentage. Nil in, nil out.
func LetterFromPercentage(p *float64) *Letter {
	if p == nil {
		return nil
	}
	var l Letter
	switch {
	case *p >= 95:
		l = LetterAPlus
	case *p >= 90:
		l = LetterA
	case *p >= 85:
		l = LetterBPlus
	case *p >= 80:
		l = LetterB
	case *p >= 75:
		l = LetterCPlus
	case *p >= 70:
		l = LetterC
	case *p >= 60:
		l = LetterD
	default:
		l = LetterF
	}
	return &l
}

// GPA is the arithmetic mean of the weight table over the supplied letters;
// 0 for an empty list.
func GPA(letters []Letter) float64 {
	if len(letters) == 0 {
		return 0
	}
	sum := 0.0
	for _, l := range letters {
		sum += l.Weight()
	}
	return sum / float64(len(letters))
}
