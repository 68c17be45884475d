// Package docs holds the OpenAPI document served under /swagger.
// Regenerate with: swag init -g cmd/server/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/parcels": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["parcels"],
                "summary": "List the caller's parcels",
                "parameters": [
                    {"enum": ["in_transit", "arrived", "collected"], "type": "string", "description": "Filter by status", "name": "status", "in": "query"},
                    {"enum": ["cod", "non_cod"], "type": "string", "description": "Filter by kind", "name": "kind", "in": "query"},
                    {"type": "integer", "description": "Maximum number of parcels (1-500)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.listParcelsResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["parcels"],
                "summary": "Register a parcel",
                "parameters": [
                    {"type": "string", "description": "Idempotency key to prevent duplicate submissions", "name": "Idempotency-Key", "in": "header"},
                    {"description": "Parcel details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.createParcelRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.parcelResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.parcelResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "cod_limit_reached, capacity_exceeded or duplicate_request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/v1/parcels/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["parcels"],
                "summary": "Parcel statistics for the caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.ParcelStats"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/v1/parcels/stream": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["text/event-stream"],
                "tags": ["parcels"],
                "summary": "Live parcel snapshots",
                "parameters": [
                    {"enum": ["in_transit", "arrived", "collected"], "type": "string", "description": "Filter by status", "name": "status", "in": "query"},
                    {"enum": ["cod", "non_cod"], "type": "string", "description": "Filter by kind", "name": "kind", "in": "query"},
                    {"type": "string", "description": "Owner to watch (operators only)", "name": "owner_id", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.snapshotEvent"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/v1/parcels/transitions": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["transitions"],
                "summary": "Advance many parcels to one status",
                "parameters": [
                    {"description": "Parcel ids and target status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.batchTransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.batchTransitionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/v1/parcels/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["parcels"],
                "summary": "Get a parcel",
                "parameters": [{"type": "string", "description": "Parcel id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.parcelResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["parcels"],
                "summary": "Delete a parcel",
                "parameters": [{"type": "string", "description": "Parcel id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["parcels"],
                "summary": "Edit a parcel",
                "parameters": [
                    {"type": "string", "description": "Parcel id", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.updateParcelRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.parcelResponse"}},
                    "400": {"description": "invalid_input or immutable_field", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/v1/parcels/{id}/transitions": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["transitions"],
                "summary": "Advance a parcel's status",
                "parameters": [
                    {"type": "string", "description": "Parcel id", "name": "id", "in": "path", "required": true},
                    {"description": "Target status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.transitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.parcelResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "422": {"description": "illegal_transition", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/v1/lockers": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["lockers"],
                "summary": "Locker occupancy",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.lockersResponse"}}}
            }
        },
        "/v1/capacity": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["lockers"],
                "summary": "Latest bin capacity reading",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.capacityResponse"}}}
            }
        },
        "/v1/admin/mirror/{id}/resync": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Rebuild a parcel's mirror entry",
                "parameters": [{"type": "string", "description": "Parcel id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.messageResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Occupancy": {
            "type": "object",
            "properties": {
                "free": {"type": "array", "items": {"type": "integer"}},
                "occupied": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "domain.ParcelStats": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "in_transit": {"type": "integer"},
                "arrived": {"type": "integer"},
                "collected": {"type": "integer"},
                "own_active_cod": {"type": "integer"},
                "active_cod": {"type": "integer"},
                "lockers": {"$ref": "#/definitions/domain.Occupancy"},
                "capacity_percentage": {"type": "number"},
                "can_admit_non_cod": {"type": "boolean"}
            }
        },
        "domain.CapacitySnapshot": {
            "type": "object",
            "properties": {
                "height_cm": {"type": "number"},
                "fill_percentage": {"type": "number"},
                "max_height_cm": {"type": "number"},
                "display_mode": {"type": "string", "enum": ["percentage", "height"]},
                "last_updated_at": {"type": "string"},
                "source_device_id": {"type": "string"}
            }
        },
        "handler.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "code": {"type": "string"}}
        },
        "handler.messageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "handler.createParcelRequest": {
            "type": "object",
            "required": ["kind", "tracking_number"],
            "properties": {
                "tracking_number": {"type": "string", "maxLength": 64},
                "kind": {"type": "string", "enum": ["cod", "non_cod"]}
            }
        },
        "handler.updateParcelRequest": {
            "type": "object",
            "properties": {
                "tracking_number": {"type": "string", "maxLength": 64, "minLength": 1},
                "kind": {"type": "string"},
                "locker_number": {"type": "integer"}
            }
        },
        "handler.transitionRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {"status": {"type": "string", "enum": ["in_transit", "arrived", "collected"]}}
        },
        "handler.batchTransitionRequest": {
            "type": "object",
            "required": ["parcel_ids", "status"],
            "properties": {
                "parcel_ids": {"type": "array", "maxItems": 100, "minItems": 1, "items": {"type": "string"}},
                "status": {"type": "string", "enum": ["in_transit", "arrived", "collected"]}
            }
        },
        "handler.parcelLinks": {
            "type": "object",
            "properties": {"self": {"type": "string"}, "transitions": {"type": "string"}}
        },
        "handler.parcelResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "tracking_number": {"type": "string"},
                "owner_id": {"type": "string"},
                "kind": {"type": "string"},
                "locker_number": {"type": "integer"},
                "status": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "_links": {"$ref": "#/definitions/handler.parcelLinks"}
            }
        },
        "handler.listParcelsResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/handler.parcelResponse"}},
                "count": {"type": "integer"}
            }
        },
        "handler.transitionItemResponse": {
            "type": "object",
            "properties": {
                "parcel_id": {"type": "string"},
                "ok": {"type": "boolean"},
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "handler.batchTransitionResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/handler.transitionItemResponse"}},
                "succeeded": {"type": "integer"},
                "failed": {"type": "integer"}
            }
        },
        "handler.lockersResponse": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "occupied": {"type": "array", "items": {"type": "integer"}},
                "free": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "handler.capacityResponse": {
            "type": "object",
            "properties": {
                "percentage": {"type": "number"},
                "threshold": {"type": "number"},
                "can_admit_non_cod": {"type": "boolean"},
                "reading": {"$ref": "#/definitions/domain.CapacitySnapshot"}
            }
        },
        "handler.changeResponse": {
            "type": "object",
            "properties": {"type": {"type": "string"}, "parcel_id": {"type": "string"}, "at": {"type": "string"}}
        },
        "handler.snapshotEvent": {
            "type": "object",
            "properties": {
                "change": {"$ref": "#/definitions/handler.changeResponse"},
                "parcels": {"type": "array", "items": {"$ref": "#/definitions/handler.parcelResponse"}},
                "stats": {"$ref": "#/definitions/domain.ParcelStats"},
                "snapshot_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the JWT issued by the auth provider.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Locker System API",
	Description:      "Parcel admission, locker assignment and status tracking for the pickup locker bank.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
