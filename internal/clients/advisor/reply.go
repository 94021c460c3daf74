package advisor

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// replyObject is the object form of an assistant answer. Recommendations
// appear either at the top level or nested under json_response.
type replyObject struct {
	Response           *string           `json:"response"`
	Text               *string           `json:"text"`
	RecommendedCourses []json.RawMessage `json:"recommended_courses"`
	JSONResponse       *struct {
		RecommendedCourses []json.RawMessage `json:"recommended_courses"`
	} `json:"json_response"`
	ChatTitle *string `json:"chat_title"`
	SessionID *string `json:"session_id"`
}

var replyKeys = []string{"response", "recommended_courses", "json_response", "chat_title"}

// ParseReply classifies an advisor payload into an AIReply. It never fails:
// a payload of unknown shape becomes a text reply carrying the raw body.
func ParseReply(raw []byte) domain.AIReply {
	raw = bytes.TrimSpace(raw)
	out := domain.AIReply{Raw: append(json.RawMessage(nil), raw...)}

	switch {
	case len(raw) > 0 && raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			break
		}
		if obj, ok := encodedObject(s); ok {
			fillFromObject(&out, obj)
			out.Kind = domain.ReplyEncoded
			return out
		}
		out.Kind = domain.ReplyText
		out.Text = s
		return out

	case len(raw) > 0 && raw[0] == '{':
		var obj replyObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			break
		}
		fillFromObject(&out, obj)
		out.Kind = domain.ReplyStructured
		return out
	}

	log.Warn().Int("bytes", len(raw)).Msg("advisor reply has unexpected shape; treating as text")
	out.Kind = domain.ReplyText
	out.Text = string(raw)
	return out
}

// encodedObject parses s as a reply object when it is a JSON object carrying
// at least one known reply key.
func encodedObject(s string) (replyObject, bool) {
	var obj replyObject
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "{") {
		return obj, false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(t), &keys); err != nil {
		return obj, false
	}
	found := false
	for _, k := range replyKeys {
		if _, ok := keys[k]; ok {
			found = true
			break
		}
	}
	if !found {
		return obj, false
	}
	if err := json.Unmarshal([]byte(t), &obj); err != nil {
		return obj, false
	}
	return obj, true
}

func fillFromObject(out *domain.AIReply, obj replyObject) {
	switch {
	case obj.Response != nil:
		out.Text = *obj.Response
	case obj.Text != nil:
		out.Text = *obj.Text
	}
	recs := obj.RecommendedCourses
	if len(recs) == 0 && obj.JSONResponse != nil {
		recs = obj.JSONResponse.RecommendedCourses
	}
	out.RecommendedCourses = decodeRecommendations(recs)
	if obj.ChatTitle != nil {
		out.ChatTitle = strings.TrimSpace(*obj.ChatTitle)
	}
	if obj.SessionID != nil {
		out.SessionID = *obj.SessionID
	}
}

// decodeRecommendations keeps every entry that decodes and logs the rest.
func decodeRecommendations(raws []json.RawMessage) []domain.Recommendation {
	if len(raws) == 0 {
		return nil
	}
	out := make([]domain.Recommendation, 0, len(raws))
	for i, r := range raws {
		var rec domain.Recommendation
		if err := json.Unmarshal(r, &rec); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("skipping malformed course recommendation")
			continue
		}
		out = append(out, rec)
	}
	return out
}
