package scanlog

type ListScanRunsQuery struct {
	Limit  *int     `query:"limit" json:"limit,omitempty" validate:"omitempty,gte=1,lte=100"`
	Offset *int     `query:"offset" json:"offset,omitempty" validate:"omitempty,gte=0"`
	Status []string `query:"status" json:"status,omitempty" validate:"dive,oneof=pending in_progress completed failed"`
}

type ListScanLogsQuery struct {
	AfterID *int     `query:"after_id" json:"after_id,omitempty"`
	Level   []string `query:"level" json:"level,omitempty" validate:"dive,oneof=info warn error"`
}
