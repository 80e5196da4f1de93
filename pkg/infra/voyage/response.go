package voyage

import (
	"github.com/rankbridge/rerankgate/pkg/domain/rerank"
	"github.com/valyala/fastjson"
)

type parsedResponse struct {
	Scores []rerank.Score
	Model  string
	Usage  rerank.Usage
}

var parserPool fastjson.ParserPool

// parseRerankResponse extracts scores from an upstream rerank body without
// committing to a single schema. The documented shape is
// {"data": [{"index": n, "relevance_score": f}, ...], "model": "...",
// "usage": {"total_tokens": n}}, but older deployments answered with a
// "results" array or a bare list of floats aligned with the input, so all
// three are accepted. docCount is the number of request documents; a bare
// float list that does not cover every document is rejected since the
// positional mapping would be ambiguous. An empty Scores slice means
// nothing usable was found.
func parseRerankResponse(body []byte, docCount int) parsedResponse {
	var out parsedResponse

	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return out
	}

	if v.Type() != fastjson.TypeObject {
		return out
	}

	out.Model = string(v.GetStringBytes("model"))
	out.Usage.TotalTokens = v.GetInt("usage", "total_tokens")

	for _, key := range []string{"data", "results", "scores"} {
		items := v.GetArray(key)
		if len(items) == 0 {
			continue
		}
		if scores := extractScores(items, docCount); len(scores) > 0 {
			out.Scores = scores
			return out
		}
	}
	return out
}

func extractScores(items []*fastjson.Value, docCount int) []rerank.Score {
	scores := make([]rerank.Score, 0, len(items))
	for i, item := range items {
		switch item.Type() {
		case fastjson.TypeObject:
			idx := item.Get("index")
			score := item.Get("relevance_score")
			if score == nil {
				score = item.Get("score")
			}
			if idx == nil || score == nil {
				return nil
			}
			scores = append(scores, rerank.Score{
				Index:          idx.GetInt(),
				RelevanceScore: score.GetFloat64(),
			})
		case fastjson.TypeNumber:
			// Bare float list: position i scores document i. Only usable
			// when the list covers every document, otherwise the unmatched
			// documents would silently drop out of the ranking.
			if len(items) != docCount {
				return nil
			}
			scores = append(scores, rerank.Score{
				Index:          i,
				RelevanceScore: item.GetFloat64(),
			})
		default:
			return nil
		}
	}
	return scores
}
