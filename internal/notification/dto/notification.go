package dto

// CourseAlertRequest is the class-rep facing "send an alert to course X" body.
type CourseAlertRequest struct {
	CourseCode string `json:"courseCode" binding:"required"`
	Title      string `json:"title" binding:"required"`
	Body       string `json:"body" binding:"required"`
	Urgency    string `json:"urgency"`
}

// MessageBody mirrors the notification content of a raw submission.
type MessageBody struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// SendRequest is the raw fan-out submission contract.
type SendRequest struct {
	Type       string      `json:"type" binding:"required"`
	Tokens     []string    `json:"tokens"`
	Message    MessageBody `json:"message"`
	CourseCode string      `json:"courseCode"`
	Urgency    string      `json:"urgency"`
	ChatID     int64       `json:"chatId"`
}
