package saga

import "time"

// BackoffConfig задаёт параметры экспоненциального backoff между повторными
// попытками шага.
type BackoffConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultBackoffConfig возвращает конфигурацию по умолчанию: до трёх попыток
// с задержками 100ms, 200ms.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Delay возвращает паузу перед попыткой attempt (нумерация с 1).
// Перед первой попыткой пауза не нужна.
func (c BackoffConfig) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := c.InitialDelay
	for i := 2; i < attempt; i++ {
		delay = time.Duration(float64(delay) * c.BackoffFactor)
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// StepTimeouts задаёт таймауты вызовов внешних адаптеров по шагам.
type StepTimeouts struct {
	Payment   time.Duration
	Registrar time.Duration
	Email     time.Duration
	DNS       time.Duration
}

// DefaultStepTimeouts возвращает таймауты по умолчанию.
func DefaultStepTimeouts() StepTimeouts {
	return StepTimeouts{
		Payment:   15 * time.Second,
		Registrar: 30 * time.Second,
		Email:     20 * time.Second,
		DNS:       15 * time.Second,
	}
}
