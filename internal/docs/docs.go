// Package docs registers the OpenAPI document served under /swagger/.
// The document is maintained by hand alongside the route annotations in
// the badge controller.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/pets/{petID}/events": {
            "post": {
                "description": "Stores the activity log or post behind the event, publishes it and returns before badges are evaluated",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Badges"],
                "summary": "Ingest a pet event",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Pet ID", "name": "petID", "in": "path", "required": true},
                    {"description": "Event", "name": "event", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EventRequest"}}
                ],
                "responses": {
                    "202": {"description": "Event accepted", "schema": {"$ref": "#/definitions/EventAcceptedResponse"}},
                    "400": {"description": "Invalid pet ID or body", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "500": {"description": "Record could not be stored", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "503": {"description": "Event could not be published", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/pets/{petID}/badges": {
            "get": {
                "description": "Returns the badges of a pet ordered by badge type",
                "produces": ["application/json"],
                "tags": ["Badges"],
                "summary": "List a pet's badges",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Pet ID", "name": "petID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Badges", "schema": {"$ref": "#/definitions/PetBadgesResponse"}},
                    "400": {"description": "Invalid pet ID", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "503": {"description": "Badge engine is not running", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/badges/stream": {
            "get": {
                "description": "Upgrades to a websocket that receives one JSON message per earned badge",
                "tags": ["Badges"],
                "summary": "Stream earned badges",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Only stream badges of this pet", "name": "pet_id", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching protocols", "schema": {"$ref": "#/definitions/EarnedMessage"}},
                    "400": {"description": "Invalid pet_id filter", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Returns the health of the database, event bus and cache",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Healthy or degraded"},
                    "503": {"description": "Unhealthy"}
                }
            }
        },
        "/metrics": {
            "get": {
                "description": "Prometheus exposition of badge, HTTP and runtime metrics",
                "produces": ["text/plain"],
                "tags": ["System"],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "Metrics"}
                }
            }
        }
    },
    "definitions": {
        "EventRequest": {
            "type": "object",
            "required": ["type"],
            "properties": {
                "type": {"type": "string", "enum": ["photo.uploaded", "activity.logged", "post.created"]},
                "user_id": {"type": "string", "format": "uuid"},
                "activity_type": {"type": "string", "maxLength": 64, "example": "walk"},
                "comment": {"type": "string", "maxLength": 1000},
                "caption": {"type": "string", "maxLength": 2000},
                "is_public": {"type": "boolean"}
            }
        },
        "EventAccepted": {
            "type": "object",
            "properties": {
                "event_id": {"type": "string"},
                "event_type": {"type": "string", "example": "activity.logged"},
                "pet_id": {"type": "string", "format": "uuid"},
                "record_id": {"type": "string", "format": "uuid"}
            }
        },
        "BadgeView": {
            "type": "object",
            "properties": {
                "pet_id": {"type": "string", "format": "uuid"},
                "type": {"type": "string", "enum": ["upload_photo", "log_activity", "make_post", "days_in_app"]},
                "tier": {"type": "string", "example": "tenth"},
                "last_updated": {"type": "string", "format": "date-time"},
                "created_at": {"type": "string", "format": "date-time"},
                "description": {"type": "string"},
                "image_path": {"type": "string", "example": "log_activity.png"}
            }
        },
        "PetBadges": {
            "type": "object",
            "properties": {
                "pet_id": {"type": "string", "format": "uuid"},
                "badges": {"type": "array", "items": {"$ref": "#/definitions/BadgeView"}}
            }
        },
        "EarnedMessage": {
            "type": "object",
            "properties": {
                "event_id": {"type": "string"},
                "pet_id": {"type": "string", "format": "uuid"},
                "badge_type": {"type": "string"},
                "tier": {"type": "string"},
                "description": {"type": "string"},
                "image_path": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "ErrorDetail": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "example": "VALIDATION_ERROR"},
                "message": {"type": "string", "example": "petID must be a valid UUID"},
                "code": {"type": "string"}
            }
        },
        "EventAcceptedResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "data": {"$ref": "#/definitions/EventAccepted"},
                "request_id": {"type": "string"},
                "timestamp": {"type": "integer"}
            }
        },
        "PetBadgesResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "data": {"$ref": "#/definitions/PetBadges"},
                "request_id": {"type": "string"},
                "timestamp": {"type": "integer"}
            }
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": false},
                "error": {"$ref": "#/definitions/ErrorDetail"},
                "request_id": {"type": "string"},
                "timestamp": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Petfolio Badge API",
	Description:      "Badge ingestion, snapshots and the earned-badge stream for Petfolio pets.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
