// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Roll up component statuses into a system status",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.HealthStatus"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/model.HealthStatus"}}
                }
            }
        },
        "/status": {
            "get": {
                "description": "Get the status of the core and every component",
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Get system status",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/plugins": {
            "get": {
                "description": "List registered plugins in registration order",
                "produces": ["application/json"],
                "tags": ["plugins"],
                "summary": "List plugins",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.PluginInfo"}}}
                }
            }
        },
        "/plugins/{name}": {
            "get": {
                "description": "Get one plugin by name",
                "produces": ["application/json"],
                "tags": ["plugins"],
                "summary": "Get plugin",
                "parameters": [{"type": "string", "description": "Plugin name", "name": "name", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.PluginInfo"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/events": {
            "get": {
                "description": "Get recent events from the bus history, oldest first",
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "Event history",
                "parameters": [
                    {"type": "string", "description": "Event type filter", "name": "type", "in": "query"},
                    {"type": "integer", "description": "Maximum number of events", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            },
            "delete": {
                "description": "Drop every event from the bus history",
                "tags": ["events"],
                "summary": "Clear event history",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/optimize": {
            "post": {
                "description": "Take a safety backup, run every enabled plugin and apply retention",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["optimization"],
                "summary": "Run optimization",
                "parameters": [{"description": "Run options", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/api.optimizeRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.RunReport"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/results": {
            "get": {
                "description": "Get the results and summary of the last run",
                "produces": ["application/json"],
                "tags": ["optimization"],
                "summary": "Last run results",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/backups": {
            "get": {
                "description": "List bundles, newest first",
                "produces": ["application/json"],
                "tags": ["backups"],
                "summary": "List backups",
                "parameters": [{"type": "integer", "description": "Maximum number of bundles", "name": "limit", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.BackupInfo"}}}
                }
            },
            "post": {
                "description": "Write a bundle of the current plugin state",
                "produces": ["application/json"],
                "tags": ["backups"],
                "summary": "Create backup",
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/backups/{file}/restore": {
            "post": {
                "description": "Replay a bundle from the backup directory",
                "produces": ["application/json"],
                "tags": ["backups"],
                "summary": "Restore backup",
                "parameters": [{"type": "string", "description": "Bundle file name", "name": "file", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.RestoreReport"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/config": {
            "get": {
                "description": "Get the active configuration",
                "produces": ["application/json"],
                "tags": ["config"],
                "summary": "Get configuration",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/metrics": {
            "get": {
                "description": "Prometheus metrics",
                "produces": ["text/plain"],
                "tags": ["system"],
                "summary": "Metrics",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "api.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "api.optimizeRequest": {
            "type": "object",
            "properties": {
                "backup": {"type": "boolean"},
                "mode": {"type": "string", "enum": ["balanced", "gaming", "development", "custom"]}
            }
        },
        "model.HealthStatus": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object"},
                "components": {"type": "object"}
            }
        },
        "model.PluginInfo": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "enabled": {"type": "boolean"},
                "priority": {"type": "integer"},
                "dependencies": {"type": "array", "items": {"type": "string"}}
            }
        },
        "model.BackupInfo": {
            "type": "object",
            "properties": {
                "path": {"type": "string"},
                "name": {"type": "string"},
                "size": {"type": "integer"},
                "modified": {"type": "string"}
            }
        },
        "model.RunReport": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "started_at": {"type": "string"},
                "duration_ms": {"type": "number"},
                "results": {"type": "array", "items": {"type": "object"}},
                "summary": {"type": "object"},
                "backup_file": {"type": "string"}
            }
        },
        "model.RestoreReport": {
            "type": "object",
            "properties": {
                "backup_file": {"type": "string"},
                "total": {"type": "integer"},
                "successful": {"type": "integer"},
                "failed": {"type": "integer"},
                "errors": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Tuner API",
	Description:      "API for running and reverting system optimizations",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
