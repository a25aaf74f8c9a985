package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Madrasatonaa Broadcast & Feed API",
        "description": "Audience-scoped event broadcast and activity feed service",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Feed", "description": "Personalized activity feed"},
        {"name": "Events", "description": "Timeline event emission"},
        {"name": "Announcements", "description": "School-wide and scoped announcements"},
        {"name": "Memos", "description": "Acknowledgeable memos"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/api/v1/feed": {
            "get": {
                "tags": ["Feed"],
                "summary": "List the caller's personalized activity feed",
                "parameters": [
                    {"name": "type", "in": "query", "type": "string", "description": "Filter by event type"},
                    {"name": "from", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "to", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "child_id", "in": "query", "type": "string", "description": "Guardian only: restrict to one linked student"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "cursor", "in": "query", "type": "string", "description": "Opaque keyset cursor from a previous page"}
                ],
                "responses": {
                    "200": {"description": "Feed page", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid cursor or filter"},
                    "401": {"description": "Missing or invalid token"},
                    "403": {"description": "Asserted child is not linked to the caller"}
                }
            }
        },
        "/api/v1/events": {
            "post": {
                "tags": ["Events"],
                "summary": "Emit a timeline event",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EmitEventRequest"}}
                ],
                "responses": {
                    "201": {"description": "Event created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Visibility scope missing its identifier"}
                }
            }
        },
        "/api/v1/announcements": {
            "get": {
                "tags": ["Announcements"],
                "summary": "List published announcements visible to the caller",
                "responses": {
                    "200": {"description": "Announcements", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Announcements"],
                "summary": "Create an announcement",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBroadcastRequest"}}
                ],
                "responses": {
                    "201": {"description": "Announcement created"},
                    "400": {"description": "Invalid audience scope"}
                }
            }
        },
        "/api/v1/memos": {
            "get": {
                "tags": ["Memos"],
                "summary": "List published memos visible to the caller with acknowledgement state",
                "responses": {
                    "200": {"description": "Memos", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Memos"],
                "summary": "Create a memo",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBroadcastRequest"}}
                ],
                "responses": {
                    "201": {"description": "Memo created"}
                }
            }
        },
        "/api/v1/memos/{id}/acknowledge": {
            "post": {
                "tags": ["Memos"],
                "summary": "Acknowledge a memo",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Acknowledgement recorded"},
                    "204": {"description": "Memo does not require acknowledgement"},
                    "403": {"description": "Caller is outside the memo audience"},
                    "404": {"description": "Memo not found or unpublished"}
                }
            }
        },
        "/api/v1/memos/{id}/acknowledgements/export": {
            "get": {
                "tags": ["Memos"],
                "summary": "Export memo acknowledgements as CSV or PDF",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Report file"},
                    "404": {"description": "Memo not found"}
                }
            }
        }
    },
    "definitions": {
        "EmitEventRequest": {
            "type": "object",
            "required": ["event_type", "visibility_scope", "title_ar", "title_en"],
            "properties": {
                "event_type": {"type": "string"},
                "visibility_scope": {"type": "string", "enum": ["UNIT", "SECTION", "STUDENT", "STAFF_ONLY", "GUARDIANS_ONLY", "STUDENTS_ONLY", "CUSTOM"]},
                "unit_id": {"type": "string"},
                "section_id": {"type": "string"},
                "student_id": {"type": "string"},
                "title_ar": {"type": "string"},
                "title_en": {"type": "string"},
                "body_ar": {"type": "string"},
                "body_en": {"type": "string"},
                "audience_roles": {"type": "array", "items": {"type": "string"}},
                "payload": {"type": "object"}
            }
        },
        "AudienceScope": {
            "type": "object",
            "required": ["audience"],
            "properties": {
                "audience": {"type": "array", "items": {"type": "string", "enum": ["STAFF", "GUARDIAN", "STUDENT"]}},
                "staff_roles": {"type": "array", "items": {"type": "string"}},
                "unit_ids": {"type": "array", "items": {"type": "string"}},
                "section_ids": {"type": "array", "items": {"type": "string"}},
                "student_ids": {"type": "array", "items": {"type": "string"}}
            }
        },
        "CreateBroadcastRequest": {
            "type": "object",
            "required": ["title_ar", "title_en", "body_ar", "body_en", "scope"],
            "properties": {
                "unit_id": {"type": "string"},
                "title_ar": {"type": "string"},
                "title_en": {"type": "string"},
                "body_ar": {"type": "string"},
                "body_en": {"type": "string"},
                "scope": {"$ref": "#/definitions/AudienceScope"},
                "publish_at": {"type": "string", "format": "date-time"},
                "ack_required": {"type": "boolean"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
