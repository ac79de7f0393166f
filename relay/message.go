package relay

// Wire messages sent to participants. Field names are part of the client
// protocol and must not change.

type TranscriptMessage struct {
	Type            string `json:"type"`
	Speaker         string `json:"speaker"`
	SpeakerLanguage string `json:"speakerLanguage"`
	Original        string `json:"original"`
	SourceLanguage  string `json:"sourceLanguage"`
	Translation     string `json:"translation"`
	AudioURL        string `json:"audioUrl"`
}

type ParticipantInfo struct {
	UserName      string `json:"userName"`
	SpeakLanguage string `json:"speakLanguage"`
	HearLanguage  string `json:"hearLanguage"`
}

type ParticipantsMessage struct {
	Type         string            `json:"type"`
	Participants []ParticipantInfo `json:"participants"`
}
