package common

// APIKeyHeaderName carries the client API key on verification server requests.
const APIKeyHeaderName = "X-API-Key"
