package main

// General API documentation for swaggo. The rendered document lives in
// internal/httpapi/static/swagger.json.
//
// @title           ttsd API
// @version         1.0
// @description     Text-to-speech server that keeps one model resident on the GPU and releases it when idle.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
