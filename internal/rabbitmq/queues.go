package rabbitmq

const (
	// Exchange direct-обменник для всех фоновых заданий.
	Exchange = "notifications"

	// DeadLetterExchange принимает сообщения, не обработанные со второй попытки.
	DeadLetterExchange = "notifications.dead"

	QueueEmail          = "email.send"
	RoutingEmail        = "email"
	QueueInstallments   = "installments.setup"
	RoutingInstallments = "installments"

	prefetch = 10
)

// QueueConfig очередь и ключ маршрутизации в Exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Queues возвращает очереди, которые объявляют все процессы.
func Queues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueEmail, RoutingKey: RoutingEmail},
		{QueueName: QueueInstallments, RoutingKey: RoutingInstallments},
	}
}

// DeadLetterQueue имя очереди для отвергнутых сообщений queue.
func DeadLetterQueue(queue string) string {
	return queue + ".dead"
}
