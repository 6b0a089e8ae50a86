package enums

// Intent is a classified conversational intent category.
type Intent string

const (
	IntentNewOrder       Intent = "new_order"
	IntentOrderStatus    Intent = "order_status"
	IntentModifyOrder    Intent = "modify_order"
	IntentCancelOrder    Intent = "cancel_order"
	IntentComplaint      Intent = "complaint"
	IntentRefundRequest  Intent = "refund_request"
	IntentDeliveryIssue  Intent = "delivery_issue"
	IntentGeneralInquiry Intent = "general_inquiry"
)

func (i Intent) String() string {
	return string(i)
}
