package transfer

type PostCreation struct {
	Caption       string   `json:"caption"`
	Hashtags      []string `json:"hashtags"`
	MediaURL      string   `json:"media_url"`
	Platforms     []string `json:"platforms"`
	ScheduledDate string   `json:"scheduled_date"` // 2006-01-02
	ScheduledTime string   `json:"scheduled_time"` // 15:04
	Timezone      string   `json:"timezone"`
}

type PublishRequest struct {
	Platforms []string `json:"platforms"`
}

type CaptionPreviewRequest struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

type CaptionPreview struct {
	Limit     int    `json:"limit"`
	Length    int    `json:"length"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
}
