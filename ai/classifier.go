package ai

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/hrygo/ajanda/dialog"
)

// classifierPrompt constrains the model to the closed route set with a
// self-reported confidence.
const classifierPrompt = `Sen bir Türkçe takvim asistanının niyet sınıflandırıcısısın.
Kullanıcının cümlesini aşağıdaki rotalardan birine ata:
- calendar_create: yeni etkinlik ekleme isteği
- calendar_cancel: mevcut etkinliği silme/iptal isteği
- calendar_modify: mevcut etkinliği taşıma/erteleme isteği
- calendar_query: takvimi görüntüleme/sorma isteği
- smalltalk: selamlaşma, sohbet
- unknown: hiçbiri

Sadece şu JSON ile yanıtla: {"route": "...", "confidence": 0.0}`

var validRoutes = map[string]dialog.Route{
	"calendar_create": dialog.RouteCalendarCreate,
	"calendar_cancel": dialog.RouteCalendarCancel,
	"calendar_modify": dialog.RouteCalendarModify,
	"calendar_query":  dialog.RouteCalendarQuery,
	"smalltalk":       dialog.RouteSmalltalk,
	"unknown":         dialog.RouteUnknown,
}

// Classifier implements dialog.RouteClassifier over the completion client.
type Classifier struct {
	client dialog.CompletionClient
}

// NewClassifier creates the LLM route classifier.
func NewClassifier(client dialog.CompletionClient) *Classifier {
	return &Classifier{client: client}
}

// Classify asks the model for a route and a confidence. An answer outside the
// closed route set maps to unknown with zero confidence.
func (c *Classifier) Classify(ctx context.Context, utterance string) (dialog.Route, float64, error) {
	raw, err := c.client.CompleteJSON(ctx, []dialog.Message{
		dialog.SystemMessage(classifierPrompt),
		dialog.UserMessage(utterance),
	}, "")
	if err != nil {
		return dialog.RouteUnknown, 0, errors.Wrap(err, "classifier call failed")
	}

	var out struct {
		Route      string  `json:"route"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return dialog.RouteUnknown, 0, errors.Wrap(err, "malformed classifier response")
	}

	route, ok := validRoutes[out.Route]
	if !ok {
		return dialog.RouteUnknown, 0, nil
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return route, 0, nil
	}
	return route, out.Confidence, nil
}
