package main

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"gocheckin/mqtt"
	"gocheckin/station"
)

// eventMessage is the JSON published for each loop event.
type eventMessage struct {
	Event   string    `json:"event"`
	Time    time.Time `json:"time"`
	Cycle   string    `json:"cycle,omitempty"`
	Card    uint32    `json:"card,omitempty"`
	Result  string    `json:"result,omitempty"`
	Code    *int      `json:"code,omitempty"`
	Pattern string    `json:"pattern,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func newEventMessage(e station.Event) eventMessage {
	m := eventMessage{
		Event: e.Kind.String(),
		Time:  e.Time.UTC(),
		Cycle: e.Cycle,
		Card:  e.Card,
	}
	switch e.Kind {
	case station.EventFeedback:
		m.Result = e.Result.String()
		code := e.Result.Code
		m.Code = &code
		m.Pattern = e.Pattern.String()
	case station.EventUnhandled:
		m.Result = e.Result.String()
	}
	if e.Err != nil {
		m.Error = e.Err.Error()
	}
	return m
}

// eventPublisher returns a station.Deps.OnEvent that publishes to MQTT.
func eventPublisher(client *mqtt.Client) func(station.Event) {
	topic := client.Topic("event")
	return func(e station.Event) {
		payload, err := json.Marshal(newEventMessage(e))
		if err != nil {
			log.Errorf("Encode event: %v", err)
			return
		}
		client.Publish(topic, payload, false)
	}
}

func publishStatus(client *mqtt.Client, status, model string) {
	payload, _ := json.Marshal(map[string]string{
		"status": status,
		"model":  model,
		"build":  myBuild,
	})
	client.Publish(client.Topic("status"), payload, true)
}
