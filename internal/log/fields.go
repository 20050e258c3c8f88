package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldUserID     = "user_id"
	FieldTelegramID = "telegram_id"
	FieldSubName    = "subscription_name"
	FieldCurrency   = "currency"
	FieldNextBill   = "next_bill"
)

// Components defines standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentRates   = "rates"
	ComponentBilling = "billing"
	ComponentSweep   = "sweep"
	ComponentAMQP    = "amqp"
	ComponentNotify  = "notify"
)
