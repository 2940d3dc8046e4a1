package model

type AddRecordForm struct {
	PatientID   string `json:"patientID" form:"patientID" validate:"required"`
	Diagnosis   string `json:"diagnosis" form:"diagnosis" validate:"required"`
	Treatment   string `json:"treatment" form:"treatment" validate:"required"`
	PatientName string `json:"patientName,omitempty" form:"patientName"`
}

type AuthorizeProviderForm struct {
	ProviderAddress string `json:"providerAddress" form:"providerAddress"`
}

// ActionResult is what a completed user action hands back to the presentation layer.
type ActionResult struct {
	Prompt  string   `json:"prompt,omitempty"`
	TxHash  string   `json:"txHash,omitempty"`
	Records []Record `json:"records,omitempty"`
}
