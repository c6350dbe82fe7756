package domain

type NotificationMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type AppointmentRequestedData struct {
	MemberName  string `json:"memberName"`
	MachineName string `json:"machineName"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
}

type AppointmentDecisionData struct {
	MachineName string `json:"machineName"`
	StartTime   string `json:"startTime"`
	Decision    string `json:"decision"`
	Reason      string `json:"reason"`
}

type AppointmentResultData struct {
	MachineName     string `json:"machineName"`
	Result          string `json:"result"`
	Notes           string `json:"notes"`
	CheckoutGranted bool   `json:"checkoutGranted"`
}

type AppointmentCancelledData struct {
	MachineName string `json:"machineName"`
	StartTime   string `json:"startTime"`
	Reason      string `json:"reason"`
}

type ReservationDecisionData struct {
	MachineName string `json:"machineName"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Decision    string `json:"decision"`
	Reason      string `json:"reason"`
}

type CheckoutRevokedData struct {
	MachineName string `json:"machineName"`
}

type CreateUserData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}
