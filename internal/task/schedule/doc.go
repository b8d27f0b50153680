// Package schedule converts rate-style interval expressions into canonical
// 5-field cron schedules (minute, hour, day-of-month, month, day-of-week).
package schedule
