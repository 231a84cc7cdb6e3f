package monitor

// SessionRequestSchema guards the session-creation endpoint.
const SessionRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["amountMinor", "currency", "paymentMethod", "billing", "items"],
  "properties": {
    "amountMinor": {"type": "integer", "minimum": 1},
    "currency": {"type": "string", "minLength": 3, "maxLength": 3},
    "paymentMethod": {"type": "string", "enum": ["cash_on_delivery", "card", "wallet"]},
    "gateway": {"type": "string", "enum": ["none", "hosted_webhook", "hosted_redirect", "wallet_handshake"]},
    "billing": {
      "type": "object",
      "required": ["firstName", "lastName", "email", "phoneNumber"],
      "properties": {
        "firstName": {"type": "string", "minLength": 1},
        "lastName": {"type": "string", "minLength": 1},
        "email": {"type": "string", "minLength": 3},
        "phoneNumber": {"type": "string", "minLength": 5}
      }
    },
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "amountMinor", "quantity"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "amountMinor": {"type": "integer", "minimum": 0},
          "quantity": {"type": "integer", "minimum": 1}
        }
      }
    }
  }
}`

// WebhookEnvelopeSchema guards the hosted-webhook callback. Only the
// envelope shape and the fields participating in the HMAC are pinned;
// providers add fields freely.
const WebhookEnvelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "obj"],
  "properties": {
    "type": {"type": "string"},
    "obj": {
      "type": "object",
      "required": ["id", "amount_cents", "currency", "success", "order"],
      "properties": {
        "id": {"type": "integer"},
        "amount_cents": {"type": "integer"},
        "currency": {"type": "string"},
        "success": {"type": "boolean"},
        "pending": {"type": "boolean"},
        "order": {
          "type": "object",
          "required": ["id"],
          "properties": {
            "id": {"type": "integer"},
            "merchant_order_id": {"type": "string"}
          }
        }
      }
    }
  }
}`
