package directory

// ConfigSchema describes the app configuration form the platform renders
// for this bridge: a repeating group of device-id/token pairs. Uploaded
// once at startup via SetConfigSchema.
func ConfigSchema() map[string]any {
	return map[string]any{
		"AccessTokens": map[string]any{
			"type":        "array",
			"title":       "Device access tokens",
			"description": "miio devices that hide their token must be listed here before the bridge can open them",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"deviceID": map[string]any{
						"type":  "string",
						"title": "Numeric device id",
					},
					"token": map[string]any{
						"type":  "string",
						"title": "Access token (hex)",
					},
				},
				"required": []string{"deviceID", "token"},
			},
		},
	}
}
