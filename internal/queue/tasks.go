package queue

const (
	TypeAudiobookGenerate = "audiobook:generate"
)

type AudiobookGeneratePayload struct {
	JobID string `json:"job_id"`
	Topic string `json:"topic"`
	Voice string `json:"voice,omitempty"`
}
