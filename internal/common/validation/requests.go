package validation

// AskRequestSchema describes the body of POST /v1/ask.
var AskRequestSchema = MustCompile(`{
  "type": "object",
  "required": ["text"],
  "properties": {
    "text": {"type": "string", "maxLength": 4000},
    "callerId": {"type": "string", "maxLength": 128},
    "conversation": {
      "type": "object",
      "properties": {
        "tickers": {"type": "array", "items": {"type": "string"}},
        "history": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`)

// BatchRequestSchema describes the body of POST /v1/batch.
var BatchRequestSchema = MustCompile(`{
  "type": "object",
  "required": ["entities"],
  "properties": {
    "entities": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1, "maxLength": 10}
    },
    "question": {"type": "string", "maxLength": 2000},
    "callerId": {"type": "string", "maxLength": 128},
    "notify": {"type": "boolean"}
  }
}`)
