package scoring

import "math"

// Decision is the discrete recommendation.
type Decision string

const (
	DecisionPrioritize Decision = "PRIORITIZE"
	DecisionReview     Decision = "REVIEW"
	DecisionPass       Decision = "PASS"
)

// Confidence labels how far the final score sits from the midpoint.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Recommendation is the decision derived from a final score and a risk score.
type Recommendation struct {
	Decision   Decision   `json:"decision"`
	Rationale  string     `json:"rationale"`
	Confidence Confidence `json:"confidence"`
	NextSteps  []string   `json:"next_steps"`
}

// Recommend maps (finalScore, riskScore) to a decision.
func Recommend(finalScore, riskScore float64) Recommendation {
	var decision Decision
	switch {
	case finalScore >= 0.70 && riskScore <= 0.40:
		decision = DecisionPrioritize
	case finalScore >= 0.50 && riskScore <= 0.60:
		decision = DecisionReview
	default:
		decision = DecisionPass
	}
	return Recommendation{
		Decision:   decision,
		Rationale:  rationale(decision),
		Confidence: confidenceFor(finalScore),
		NextSteps:  NextSteps(decision),
	}
}

func confidenceFor(finalScore float64) Confidence {
	distance := math.Abs(finalScore - 0.5)
	switch {
	case distance > 0.30:
		return ConfidenceHigh
	case distance > 0.15:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func rationale(d Decision) string {
	switch d {
	case DecisionPrioritize:
		return "Strong opportunity with manageable risk"
	case DecisionReview:
		return "Potential opportunity requiring deeper analysis"
	default:
		return "Insufficient opportunity or excessive risk"
	}
}

// NextSteps lists the follow-up actions for a decision.
func NextSteps(d Decision) []string {
	switch d {
	case DecisionPrioritize:
		return []string{"Schedule founder meeting", "Begin formal due diligence", "Prepare term sheet", "Conduct reference checks"}
	case DecisionReview:
		return []string{"Deeper market analysis", "Customer interviews", "Technical assessment", "Follow-up with founders"}
	default:
		return []string{"Send polite decline", "Monitor for future progress", "Maintain relationship", "Archive analysis"}
	}
}
