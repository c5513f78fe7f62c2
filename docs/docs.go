// Package docs регистрирует OpenAPI-описание Splickets для http-swagger.
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
        "/health": {
            "get": {"tags": ["Health"], "summary": "Проверка состояния", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/auth/register": {
            "post": {"tags": ["Auth"], "summary": "Регистрация пользователя", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/register.Request"}}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/auth/login": {
            "post": {"tags": ["Auth"], "summary": "Вход пользователя", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/login.Request"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/users/exists": {
            "get": {"tags": ["Users"], "summary": "Проверка существования пользователя",
                "parameters": [{"type": "string", "name": "email", "in": "query", "required": true}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/users/me/currency": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["Currency"], "summary": "Сохранить валюту пользователя",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/preferred.Request"}}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/currency": {
            "get": {"tags": ["Currency"], "summary": "Валюта пользователя",
                "parameters": [{"type": "string", "name": "X-Preferred-Currency", "in": "header"}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/flights/search": {
            "get": {"tags": ["Flights"], "summary": "Поиск рейсов",
                "parameters": [
                    {"type": "string", "name": "origin", "in": "query", "required": true},
                    {"type": "string", "name": "destination", "in": "query", "required": true},
                    {"type": "string", "name": "departure_date", "in": "query", "required": true},
                    {"type": "string", "name": "return_date", "in": "query"},
                    {"type": "integer", "name": "passengers", "in": "query"},
                    {"type": "string", "name": "cabin", "in": "query"},
                    {"type": "string", "name": "currency", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "502": {"description": "Bad Gateway"}}}
        },
        "/bookings": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Bookings"], "summary": "Создать бронирование",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/models.DummyBooking"}}],
                "responses": {"201": {"description": "Created"}, "404": {"description": "Not Found"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/bookings/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Bookings"], "summary": "Получить бронирование",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/bookings/{id}/cancel": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Bookings"], "summary": "Отменить бронирование",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/payments/intent": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Payments"], "summary": "Создать намерение оплаты депозита",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/plan.Request"}}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "502": {"description": "Bad Gateway"}}}
        },
        "/payments/confirm": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Payments"], "summary": "Подтвердить оплату депозита",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/plan.Request"}}],
                "responses": {"200": {"description": "OK"}, "402": {"description": "Payment Required"}, "409": {"description": "Conflict"}}}
        },
        "/payments/subscription": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Payments"], "summary": "Создать подписку на рассрочку",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/plan.Request"}}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Unprocessable Entity"}, "502": {"description": "Bad Gateway"}}}
        },
        "/payments/webhook": {
            "post": {"tags": ["Payments"], "summary": "Webhook платёжного процессора",
                "parameters": [{"type": "string", "name": "Stripe-Signature", "in": "header", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/referral": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Referral"], "summary": "Мой реферальный код",
                "responses": {"200": {"description": "OK"}}}
        },
        "/referral/{code}": {
            "get": {"tags": ["Referral"], "summary": "Проверить реферальный код",
                "parameters": [{"type": "string", "name": "code", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/email/test": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Email"], "summary": "Отправить тестовое письмо",
                "parameters": [{"in": "body", "name": "request", "schema": {"$ref": "#/definitions/testemail.Request"}}],
                "responses": {"202": {"description": "Accepted"}}}
        }
    },
    "definitions": {
        "register.Request": {"type": "object", "required": ["email", "first_name", "last_name", "password"],
            "properties": {"email": {"type": "string"}, "first_name": {"type": "string"}, "last_name": {"type": "string"}, "password": {"type": "string"}}},
        "login.Request": {"type": "object", "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}},
        "preferred.Request": {"type": "object", "required": ["currency"], "properties": {"currency": {"type": "string"}}},
        "plan.Request": {"type": "object", "required": ["booking_id"], "properties": {"booking_id": {"type": "integer"}}},
        "testemail.Request": {"type": "object", "properties": {"to": {"type": "string"}, "name": {"type": "string"}}},
        "models.Passenger": {"type": "object", "required": ["first_name", "last_name", "date_of_birth"],
            "properties": {"first_name": {"type": "string"}, "last_name": {"type": "string"}, "date_of_birth": {"type": "string"}, "passport": {"type": "string"}}},
        "models.DummyBooking": {"type": "object", "required": ["offer_id", "passengers"],
            "properties": {"offer_id": {"type": "string"}, "installments": {"type": "integer"}, "promo_code": {"type": "string"},
                "passengers": {"type": "array", "items": {"$ref": "#/definitions/models.Passenger"}}}},
        "response.ErrorResponse": {"type": "object", "properties": {"status": {"type": "string", "example": "Error"}, "error": {"type": "string"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo метаданные документации, которые можно переопределить при запуске.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Splickets API",
	Description:      "Flight search, bookings with deposit and installment payments.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
