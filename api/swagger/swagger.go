package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA ADP Scoring API",
        "description": "Final score calculation, batch processing and extra-score sync",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Scores", "description": "Final score calculation"},
        {"name": "Sync", "description": "Extra-score reconciliation"},
        {"name": "Cache", "description": "Cache invalidation"},
        {"name": "Performance", "description": "In-process performance monitor"},
        {"name": "AccessCodes", "description": "Per-student exam access codes"},
        {"name": "Settings", "description": "Global calculation settings"}
    ],
    "paths": {
        "/scores/calculate": {
            "post": {
                "tags": ["Scores"],
                "summary": "Calculate a final score from a supplied input",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CalculateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scores/calculate/legacy": {
            "post": {
                "tags": ["Scores"],
                "summary": "Calculate a final score from a legacy record",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scores/batch": {
            "post": {
                "tags": ["Scores"],
                "summary": "Calculate scores for many students",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "legacy", "csv", "pdf"]},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scores/students/{code}": {
            "get": {
                "tags": ["Scores"],
                "summary": "Calculate one student's score from stored data",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/{category}": {
            "post": {
                "tags": ["Sync"],
                "summary": "Run an extra-score sync",
                "parameters": [
                    {"name": "category", "in": "path", "required": true, "type": "string", "enum": ["homework", "quiz", "attendance", "all"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Sync already running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Source read failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/students/{id}": {
            "post": {
                "tags": ["Sync"],
                "summary": "Sync one student's extra scores",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "async", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/timestamps": {
            "get": {
                "tags": ["Sync"],
                "summary": "Last sync time per category",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cache/invalidate": {
            "post": {
                "tags": ["Cache"],
                "summary": "Invalidate cache entries for a mutation event",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/InvalidateCacheRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/cache/tiers/{tier}": {
            "delete": {
                "tags": ["Cache"],
                "summary": "Drop every entry of a cache tier",
                "parameters": [
                    {"name": "tier", "in": "path", "required": true, "type": "string", "enum": ["STATIC", "CONFIG", "SCORES", "USER", "LIVE"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/performance": {
            "get": {
                "tags": ["Performance"],
                "summary": "Aggregate performance summary",
                "parameters": [
                    {"name": "recent", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/performance/reset": {
            "post": {
                "tags": ["Performance"],
                "summary": "Drop every retained performance record",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/access-codes/{code}": {
            "put": {
                "tags": ["AccessCodes"],
                "summary": "Store a student's access code",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AccessCodeRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            },
            "delete": {
                "tags": ["AccessCodes"],
                "summary": "Clear a student's access code",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/settings/calculation": {
            "get": {
                "tags": ["Settings"],
                "summary": "Get calculation settings",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Settings"],
                "summary": "Update calculation settings",
                "parameters": [
                    {"name": "X-Actor", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CalculationSettings"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Invalid settings", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/access-codes/{code}/validate": {
            "post": {
                "tags": ["AccessCodes"],
                "summary": "Validate a submitted access code",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AccessCodeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No code stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ExamAttempt": {
            "type": "object",
            "properties": {
                "exam_id": {"type": "string"},
                "exam_title": {"type": "string"},
                "score_percentage": {"type": "number"},
                "final_score_percentage": {"type": "number"},
                "include_in_pass": {"type": "boolean"},
                "pass_threshold": {"type": "number"}
            }
        },
        "ExtraField": {
            "type": "object",
            "properties": {
                "key": {"type": "string"},
                "label": {"type": "string"},
                "type": {"type": "string", "enum": ["number", "text", "boolean"]},
                "include_in_pass": {"type": "boolean"},
                "pass_weight": {"type": "number"},
                "max_points": {"type": "number"}
            }
        },
        "CalculationSettings": {
            "type": "object",
            "properties": {
                "pass_calc_mode": {"type": "string", "enum": ["best", "avg"]},
                "overall_pass_threshold": {"type": "number"},
                "exam_weight": {"type": "number"},
                "exam_score_source": {"type": "string", "enum": ["final", "raw"]},
                "fail_on_any_exam": {"type": "boolean"}
            }
        },
        "CalculateRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "student_code": {"type": "string"},
                "student_name": {"type": "string"},
                "exam_attempts": {"type": "array", "items": {"$ref": "#/definitions/ExamAttempt"}},
                "extra_scores": {"type": "object"},
                "extra_fields": {"type": "array", "items": {"$ref": "#/definitions/ExtraField"}},
                "settings": {"$ref": "#/definitions/CalculationSettings"}
            }
        },
        "BatchRequest": {
            "type": "object",
            "properties": {
                "codes": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["codes"]
        },
        "InvalidateCacheRequest": {
            "type": "object",
            "properties": {
                "event": {"type": "string", "enum": ["exam_updated", "student_updated", "settings_updated", "extra_fields_updated", "extra_scores_synced"]},
                "exam_id": {"type": "string"},
                "student_codes": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["event"]
        },
        "AccessCodeRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"}
            },
            "required": ["code"]
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
                "meta": {"type": "object"}
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
