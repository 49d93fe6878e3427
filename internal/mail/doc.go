// Package mail отправляет письма для шага action/email.
//
// Включает:
//   - ses.go — отправка через Amazon SES v2
//   - log.go — отправка в лог (локальная разработка, без AWS)
package mail
