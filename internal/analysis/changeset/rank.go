package changeset

import (
	"sort"

	"github.com/moolen-fork/changeintel/internal/analysis/blastradius"
	"github.com/moolen-fork/changeintel/internal/models"
)

const (
	childScoreWeight = 0.65
	avgScoreWeight   = 0.35
)

// RankForIncident groups correlations into ChangeSets and scores each
// group against the incident the correlations were produced for, per the
// rankChangeSetsForIncident algorithm.
func (g *Grouper) RankForIncident(correlations []models.ChangeCorrelation, analyzer *blastradius.Analyzer, maxResults int) []models.RankedChangeSet {
	if maxResults <= 0 {
		maxResults = 3
	}

	events := make([]models.ChangeEvent, len(correlations))
	scoresByEventID := make(map[string][]float64)
	correlationsByEventID := make(map[string][]models.ChangeCorrelation)
	for i, c := range correlations {
		events[i] = c.ChangeEvent
		scoresByEventID[c.ChangeEvent.ID] = append(scoresByEventID[c.ChangeEvent.ID], c.CorrelationScore)
		correlationsByEventID[c.ChangeEvent.ID] = append(correlationsByEventID[c.ChangeEvent.ID], c)
	}

	sets := g.Group(events)

	out := make([]models.RankedChangeSet, 0, len(sets))
	for _, set := range sets {
		var childScores []float64
		var whyRelevant []string
		var childCorrelations []models.ChangeCorrelation
		for _, e := range set.Events {
			childScores = append(childScores, scoresByEventID[e.ID]...)
			for _, c := range correlationsByEventID[e.ID] {
				whyRelevant = append(whyRelevant, c.WhyRelevant...)
				childCorrelations = append(childCorrelations, c)
			}
		}

		score := round3(childScoreWeight*maxOf(childScores) + avgScoreWeight*avgOf(childScores))
		whyRelevant = dedupeStrings(append(whyRelevant, set.ReadinessDelta.Notes...))
		if len(whyRelevant) > 10 {
			whyRelevant = whyRelevant[:10]
		}

		var pred *models.BlastRadiusPrediction
		if analyzer != nil {
			p := analyzer.Predict(set.Services, dominantChangeType(set.Events), 3)
			pred = p
		}

		out = append(out, models.RankedChangeSet{
			ChangeSet:            set,
			Score:                score,
			WhyRelevant:          whyRelevant,
			Confidence:           meanConfidence(childCorrelations, score),
			SuggestedBlastRadius: pred,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

func maxOf(values []float64) float64 {
	best := 0.0
	for _, v := range values {
		if v > best {
			best = v
		}
	}
	return best
}

func avgOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanConfidence(correlations []models.ChangeCorrelation, overall float64) models.Confidence {
	if len(correlations) == 0 {
		return models.Confidence{Overall: overall}
	}
	var sum models.ConfidenceFactors
	for _, c := range correlations {
		sum.TimeProximity += c.Confidence.Factors.TimeProximity
		sum.ServiceAdjacency += c.Confidence.Factors.ServiceAdjacency
		sum.ChangeRisk += c.Confidence.Factors.ChangeRisk
		sum.ChangeType += c.Confidence.Factors.ChangeType
		sum.EnvironmentMatch += c.Confidence.Factors.EnvironmentMatch
	}
	n := float64(len(correlations))
	return models.Confidence{
		Overall: overall,
		Factors: models.ConfidenceFactors{
			TimeProximity:    round3(sum.TimeProximity / n),
			ServiceAdjacency: round3(sum.ServiceAdjacency / n),
			ChangeRisk:       round3(sum.ChangeRisk / n),
			ChangeType:       round3(sum.ChangeType / n),
			EnvironmentMatch: round3(sum.EnvironmentMatch / n),
		},
	}
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
