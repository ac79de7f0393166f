package gateway

import (
	"encoding/json"
	"fmt"
)

// joinRequest is the first message on every connection.
type joinRequest struct {
	SessionID      string `json:"sessionId"`
	UserLanguage   string `json:"userLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	RoomID         string `json:"roomId"`
	UserName       string `json:"userName"`
}

func parseJoin(data []byte) (*joinRequest, error) {
	var req joinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("malformed join payload: %w", err)
	}

	if req.SessionID == "" {
		return nil, fmt.Errorf("join payload missing sessionId")
	}
	if req.UserLanguage == "" {
		return nil, fmt.Errorf("join payload missing userLanguage")
	}

	if req.TargetLanguage == "" {
		req.TargetLanguage = "en"
	}
	if req.RoomID == "" {
		req.RoomID = "default"
	}
	if req.UserName == "" {
		req.UserName = "User"
	}

	return &req, nil
}
