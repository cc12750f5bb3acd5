package main

// newsdigest 获取当天新闻，可选地生成摘要，并发送一封邮件。
// 不带参数运行一次后退出，适合交给外部的 cron / systemd timer 调度
func main() {
	Execute()
}
