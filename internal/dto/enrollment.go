package dto

// EnrollmentCheckRequest asks for eligibility of one student for one or more sections.
type EnrollmentCheckRequest struct {
	StudentID  string   `json:"student_id" validate:"required"`
	SectionIDs []string `json:"section_ids" validate:"required,min=1,max=20,dive,required"`
}

// EnrollRequest commits an enrollment. Bypass is honoured for administrative callers only.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
	Bypass    bool   `json:"bypass"`
}
